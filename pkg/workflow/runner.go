/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
	"github.com/numaproj/fastscaler/pkg/notify"
	"github.com/numaproj/fastscaler/pkg/shared/ewma"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
	"github.com/numaproj/fastscaler/pkg/watcher"
)

// Report summarizes a finished run.
type Report struct {
	Result Result `json:"result"`
	// Final is the last state of the run.
	Final State `json:"final"`
	// LoadEWMA is the moving average of the observed load, if any sample was observed.
	LoadEWMA *float64 `json:"loadEWMA,omitempty"`
	// NotifyErrors and ScaleErrors count the calls which failed without aborting the run.
	NotifyErrors int `json:"notifyErrors"`
	ScaleErrors  int `json:"scaleErrors"`
}

// Runner drives one workflow run for a deployment handle.
type Runner struct {
	handle   string
	spec     dfv1.AutoscalerSpec
	machine  *Machine
	watcher  watcher.Watcher
	notifier notify.Notifier
	smoother *ewma.Smoother
	options  *options
}

// NewRunner returns a Runner for the deployment handle. The spec is validated.
func NewRunner(handle string, spec dfv1.AutoscalerSpec, w watcher.Watcher, n notify.Notifier, opts ...Option) (*Runner, error) {
	if handle == "" {
		return nil, fmt.Errorf("empty deployment handle")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	runnerOpts := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(runnerOpts)
		}
	}
	return &Runner{
		handle:   handle,
		spec:     spec,
		machine:  NewMachine(spec),
		watcher:  w,
		notifier: n,
		smoother: ewma.NewSmoother(runnerOpts.ewmaSpan),
		options:  runnerOpts,
	}, nil
}

// Run executes the workflow until a terminal phase is reached or the context is cancelled.
// Cancellation is only honoured before the first poll and at waiting boundaries, an in-flight
// watcher or notifier call always completes within its own timeout.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	log := logging.FromContext(ctx).Named("workflow").With(zap.String("handle", r.handle))
	ctx = logging.WithLogger(ctx, log)
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	report := &Report{}
	finish := func(s State, result Result) (*Report, error) {
		report.Result = result
		report.Final = s
		if v, ok := r.smoother.Value(); ok {
			report.LoadEWMA = &v
		}
		metrics.RunResults.WithLabelValues(string(result)).Inc()
		log.Infow("Workflow run finished", zap.String("result", string(result)), zap.Int("polls", s.Polls), zap.Duration("elapsed", s.Elapsed))
		return report, nil
	}

	state := InitialState()
	r.options.observer(state)
	if ctx.Err() != nil {
		return finish(state, ResultCancelled)
	}
	log.Infow("Workflow run started", zap.Duration("maxLifetime", r.spec.GetMaxLifetime()))
	start := r.options.clock.Now()
	ev := Event{Type: EventStep, Since: 0}
	for {
		previous := state.Phase
		next, effects, err := r.machine.Transition(state, ev)
		if err != nil {
			return report, err
		}
		state = next
		r.options.observer(state)
		if previous == PhaseClassifying {
			r.recordTier(state)
		}
		ev = Event{Type: EventStep, Since: r.options.clock.Since(start)}
		for _, eff := range effects {
			switch eff.Kind {
			case EffectProbe:
				ev = r.probe(ctx)
			case EffectNotify:
				if err := r.notify(ctx, state); err != nil {
					report.NotifyErrors++
				}
				ev = Event{Type: EventNotifyDone}
			case EffectScale:
				if err := r.scale(ctx, eff.Command); err != nil {
					report.ScaleErrors++
				}
				ev = Event{Type: EventScaleDone}
			case EffectWait:
				if !r.wait(ctx, eff.Wait) {
					return finish(state, ResultCancelled)
				}
				ev = Event{Type: EventWaitDone}
			case EffectFinish:
				return finish(state, eff.Result)
			}
		}
	}
}

// callContext detaches the call from the run cancellation and bounds it by the call timeout.
func (r *Runner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.spec.GetCallTimeout())
}

func (r *Runner) probe(ctx context.Context) Event {
	log := logging.FromContext(ctx)
	metrics.PollsTotal.WithLabelValues(r.handle).Inc()
	cctx, cancel := r.callContext(ctx)
	defer cancel()
	sample, err := r.watcher.Probe(cctx, r.handle)
	if err == nil && !sample.IsValid() {
		err = fmt.Errorf("%w: invalid avg %v", watcher.ErrMalformedResponse, sample.Avg)
	}
	if err != nil {
		metrics.ProbeErrors.WithLabelValues(r.handle).Inc()
		log.Warnw("Failed to probe the load, will retry", zap.Error(err))
		return Event{Type: EventProbeFailed, Err: err}
	}
	log.Debugw("Probed the load", zap.Float64("avg", sample.Avg))
	if !sample.IsShutdown() {
		metrics.LoadAverage.WithLabelValues(r.handle).Set(sample.Avg)
		if r.smoother.Observe(sample.Avg) {
			v, _ := r.smoother.Value()
			metrics.LoadAverageEWMA.WithLabelValues(r.handle).Set(v)
		}
	}
	return Event{Type: EventProbeOK, Sample: sample}
}

func (r *Runner) notify(ctx context.Context, s State) error {
	log := logging.FromContext(ctx)
	msg := dfv1.NotificationMessage{
		Subject:      r.spec.GetNotificationSubject(),
		Handle:       r.handle,
		Tier:         s.Matched.Tier,
		DesiredCount: s.Matched.DesiredCount,
		Payload:      s.Sample,
		Timestamp:    r.options.clock.Now(),
	}
	cctx, cancel := r.callContext(ctx)
	defer cancel()
	if err := r.notifier.Notify(cctx, msg); err != nil {
		metrics.NotifyErrors.WithLabelValues(r.handle).Inc()
		log.Errorw("Failed to publish the notification, continuing", zap.Stringer("tier", msg.Tier), zap.Error(err))
		return err
	}
	log.Infow("Notification published", zap.Stringer("tier", msg.Tier), zap.Float64("avg", s.Sample.Avg))
	return nil
}

func (r *Runner) scale(ctx context.Context, cmd dfv1.ScaleCommand) error {
	log := logging.FromContext(ctx)
	metrics.ScaleCommands.WithLabelValues(r.handle).Inc()
	cctx, cancel := r.callContext(ctx)
	defer cancel()
	if err := r.watcher.Scale(cctx, r.handle, cmd); err != nil {
		metrics.ScaleErrors.WithLabelValues(r.handle).Inc()
		log.Errorw("Failed to scale, continuing", zap.Int("desiredCount", cmd.DesiredCount), zap.Error(err))
		return err
	}
	log.Infow("Auto scaling - desired count requested", zap.Int("desiredCount", cmd.DesiredCount))
	return nil
}

// wait returns false if the run was cancelled while waiting.
func (r *Runner) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-r.options.clock.After(d):
		return true
	}
}

func (r *Runner) recordTier(s State) {
	if s.Matched.Tier == dfv1.TierShutdown {
		return
	}
	metrics.TierClassifications.WithLabelValues(r.handle, s.Matched.Tier.String()).Inc()
	metrics.CurrentTier.WithLabelValues(r.handle).Set(float64(s.Matched.Tier))
}
