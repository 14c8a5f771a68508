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
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	testingclock "k8s.io/utils/clock/testing"
	"k8s.io/utils/ptr"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWatcher struct {
	lock     sync.Mutex
	samples  []float64
	errs     []error
	probes   int
	scales   []int
	scaleErr error
	// block, when set, holds every probe until it is closed, entered is closed by the first probe.
	block      chan struct{}
	entered    chan struct{}
	enterOnce  sync.Once
	probeCtxOK bool
}

// Probe returns the scripted samples in order, the last one is repeated.
func (f *fakeWatcher) Probe(ctx context.Context, _ string) (dfv1.MetricSample, error) {
	if f.block != nil {
		f.enterOnce.Do(func() { close(f.entered) })
		<-f.block
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	i := f.probes
	f.probes++
	f.probeCtxOK = ctx.Err() == nil
	if i < len(f.errs) && f.errs[i] != nil {
		return dfv1.MetricSample{}, f.errs[i]
	}
	if i >= len(f.samples) {
		i = len(f.samples) - 1
	}
	return dfv1.MetricSample{Avg: f.samples[i]}, nil
}

func (f *fakeWatcher) Scale(_ context.Context, _ string, cmd dfv1.ScaleCommand) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.scales = append(f.scales, cmd.DesiredCount)
	return f.scaleErr
}

func (f *fakeWatcher) Close() error {
	return nil
}

type fakeNotifier struct {
	lock     sync.Mutex
	messages []dfv1.NotificationMessage
	err      error
}

func (f *fakeNotifier) Name() string {
	return "fake"
}

func (f *fakeNotifier) Notify(_ context.Context, msg dfv1.NotificationMessage) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.messages = append(f.messages, msg)
	return f.err
}

func (f *fakeNotifier) Close() error {
	return nil
}

func (f *fakeNotifier) tiers() []dfv1.Tier {
	f.lock.Lock()
	defer f.lock.Unlock()
	var result []dfv1.Tier
	for _, m := range f.messages {
		result = append(result, m.Tier)
	}
	return result
}

type waitRecorder struct {
	lock  sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) observe(s State) {
	if s.Phase == PhaseWaiting {
		w.lock.Lock()
		defer w.lock.Unlock()
		w.waits = append(w.waits, s.Wait)
	}
}

func (w *waitRecorder) get() []time.Duration {
	w.lock.Lock()
	defer w.lock.Unlock()
	return append([]time.Duration(nil), w.waits...)
}

func testContext() context.Context {
	return logging.WithLogger(context.Background(), zap.NewNop().Sugar())
}

// runWithFakeClock runs the workflow and advances the fake clock one second at a time
// whenever the run is waiting.
func runWithFakeClock(t *testing.T, ctx context.Context, r *Runner, fc *testingclock.FakeClock) (*Report, error) {
	t.Helper()
	type result struct {
		report *Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := r.Run(ctx)
		done <- result{report: report, err: err}
	}()
	timeout := time.After(30 * time.Second)
	for {
		select {
		case res := <-done:
			return res.report, res.err
		case <-timeout:
			t.Fatal("timed out waiting for the workflow run")
			return nil, nil
		default:
		}
		if fc.HasWaiters() {
			fc.Step(time.Second)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

func newTestRunner(t *testing.T, spec dfv1.AutoscalerSpec, w *fakeWatcher, n *fakeNotifier, wr *waitRecorder) (*Runner, *testingclock.FakeClock) {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))
	r, err := NewRunner("svc-a", spec, w, n, WithClock(fc), WithObserver(wr.observe))
	require.NoError(t, err)
	return r, fc
}

func TestNewRunner(t *testing.T) {
	_, err := NewRunner("", dfv1.AutoscalerSpec{}, &fakeWatcher{}, &fakeNotifier{})
	assert.Error(t, err)
	_, err = NewRunner("svc-a", dfv1.AutoscalerSpec{ShortWaitSeconds: ptr.To[uint32](0)}, &fakeWatcher{}, &fakeNotifier{})
	assert.Error(t, err)
	r, err := NewRunner("svc-a", dfv1.AutoscalerSpec{}, &fakeWatcher{}, &fakeNotifier{}, nil, WithEWMASpan(10))
	assert.NoError(t, err)
	assert.NotNil(t, r)
}

func TestRunner_NegativeInfinityIsShutdown(t *testing.T) {
	w := &fakeWatcher{samples: []float64{math.Inf(-1)}}
	n := &fakeNotifier{}
	wr := &waitRecorder{}
	r, fc := newTestRunner(t, dfv1.AutoscalerSpec{MaxLifetimeSeconds: ptr.To[uint32](30)}, w, n, wr)

	report, err := runWithFakeClock(t, testContext(), r, fc)
	require.NoError(t, err)
	assert.Equal(t, ResultDone, report.Result)
	assert.Equal(t, 1, report.Final.Polls)
	assert.Empty(t, wr.get())
	assert.Empty(t, n.tiers())
}

func TestRunner_EndToEnd(t *testing.T) {
	w := &fakeWatcher{samples: []float64{10, 60, 550, -1}}
	n := &fakeNotifier{}
	wr := &waitRecorder{}
	r, fc := newTestRunner(t, dfv1.AutoscalerSpec{}, w, n, wr)

	report, err := runWithFakeClock(t, testContext(), r, fc)
	require.NoError(t, err)
	assert.Equal(t, ResultDone, report.Result)
	assert.Equal(t, PhaseDone, report.Final.Phase)
	assert.Equal(t, 4, report.Final.Polls)
	assert.Equal(t, 66*time.Second, report.Final.Elapsed)
	assert.Equal(t, 4, w.probes)
	assert.Equal(t, []int{20}, w.scales)
	assert.Equal(t, []dfv1.Tier{dfv1.TierBase, dfv1.TierHigh}, n.tiers())
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 60 * time.Second}, wr.get())
	assert.Equal(t, 0, report.NotifyErrors)
	assert.Equal(t, 0, report.ScaleErrors)
	require.NotNil(t, report.LoadEWMA)

	msg := n.messages[1]
	assert.Equal(t, dfv1.DefaultNotificationSubject, msg.Subject)
	assert.Equal(t, "svc-a", msg.Handle)
	assert.Equal(t, 20, msg.DesiredCount)
	assert.Equal(t, 550.0, msg.Payload.Avg)
}

func TestRunner_WaitsByTier(t *testing.T) {
	w := &fakeWatcher{samples: []float64{300, 100, 500, 49.999, 1000, -5}}
	n := &fakeNotifier{}
	wr := &waitRecorder{}
	r, fc := newTestRunner(t, dfv1.AutoscalerSpec{}, w, n, wr)

	report, err := runWithFakeClock(t, testContext(), r, fc)
	require.NoError(t, err)
	assert.Equal(t, ResultDone, report.Result)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 60 * time.Second, 3 * time.Second, 60 * time.Second}, wr.get())
	// Only the high tier scales.
	assert.Equal(t, []int{20, 20}, w.scales)
	assert.Equal(t, []dfv1.Tier{dfv1.TierMid, dfv1.TierLow, dfv1.TierHigh, dfv1.TierHigh}, n.tiers())
}

func TestRunner_TimedOut(t *testing.T) {
	w := &fakeWatcher{samples: []float64{10}}
	n := &fakeNotifier{}
	wr := &waitRecorder{}
	r, fc := newTestRunner(t, dfv1.AutoscalerSpec{MaxLifetimeSeconds: ptr.To[uint32](10)}, w, n, wr)

	report, err := runWithFakeClock(t, testContext(), r, fc)
	require.NoError(t, err)
	assert.Equal(t, ResultTimedOut, report.Result)
	assert.Equal(t, PhaseTimedOut, report.Final.Phase)
	// polls at 0s, 3s, 6s and 9s, no probe once 12s >= 10s
	assert.Equal(t, 4, w.probes)
	assert.Equal(t, 4, report.Final.Polls)
	assert.Equal(t, 12*time.Second, report.Final.Elapsed)
	assert.Empty(t, n.messages)
}

func TestRunner_ProbeFailureRetried(t *testing.T) {
	w := &fakeWatcher{samples: []float64{0, 0, -1}, errs: []error{errors.New("connection refused"), errors.New("timeout")}}
	n := &fakeNotifier{}
	wr := &waitRecorder{}
	r, fc := newTestRunner(t, dfv1.AutoscalerSpec{}, w, n, wr)

	report, err := runWithFakeClock(t, testContext(), r, fc)
	require.NoError(t, err)
	assert.Equal(t, ResultDone, report.Result)
	assert.Equal(t, 3, w.probes)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, wr.get())
	assert.Nil(t, report.LoadEWMA)
}

func TestRunner_FailuresDoNotAbort(t *testing.T) {
	w := &fakeWatcher{samples: []float64{550, 550, -1}, scaleErr: errors.New("throttled")}
	n := &fakeNotifier{err: errors.New("topic not found")}
	wr := &waitRecorder{}
	r, fc := newTestRunner(t, dfv1.AutoscalerSpec{}, w, n, wr)

	report, err := runWithFakeClock(t, testContext(), r, fc)
	require.NoError(t, err)
	assert.Equal(t, ResultDone, report.Result)
	assert.Equal(t, 2, report.NotifyErrors)
	assert.Equal(t, 2, report.ScaleErrors)
	assert.Equal(t, []int{20, 20}, w.scales)
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, wr.get())
}

func TestRunner_SkipUnchangedNotify(t *testing.T) {
	w := &fakeWatcher{samples: []float64{60, 70, 10, 80, -1}}
	n := &fakeNotifier{}
	wr := &waitRecorder{}
	r, fc := newTestRunner(t, dfv1.AutoscalerSpec{SkipUnchangedNotify: ptr.To(true)}, w, n, wr)

	_, err := runWithFakeClock(t, testContext(), r, fc)
	require.NoError(t, err)
	assert.Equal(t, []dfv1.Tier{dfv1.TierBase, dfv1.TierBase}, n.tiers())
}

func TestRunner_CancelledBeforeFirstPoll(t *testing.T) {
	w := &fakeWatcher{samples: []float64{550}}
	n := &fakeNotifier{}
	r, _ := newTestRunner(t, dfv1.AutoscalerSpec{}, w, n, &waitRecorder{})
	ctx, cancel := context.WithCancel(testContext())
	cancel()
	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultCancelled, report.Result)
	assert.Equal(t, 0, w.probes)
}

func TestRunner_CancelledWhileWaiting(t *testing.T) {
	w := &fakeWatcher{samples: []float64{10}}
	n := &fakeNotifier{}
	r, fc := newTestRunner(t, dfv1.AutoscalerSpec{}, w, n, &waitRecorder{})
	ctx, cancel := context.WithCancel(testContext())
	defer cancel()

	done := make(chan *Report, 1)
	go func() {
		report, _ := r.Run(ctx)
		done <- report
	}()
	assert.Eventually(t, fc.HasWaiters, 5*time.Second, time.Millisecond)
	cancel()
	select {
	case report := <-done:
		assert.Equal(t, ResultCancelled, report.Result)
		assert.Equal(t, PhaseWaiting, report.Final.Phase)
		assert.Equal(t, 1, report.Final.Polls)
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled")
	}
}

func TestRunner_InFlightCallCompletes(t *testing.T) {
	w := &fakeWatcher{samples: []float64{550}, block: make(chan struct{}), entered: make(chan struct{})}
	n := &fakeNotifier{}
	r, _ := newTestRunner(t, dfv1.AutoscalerSpec{}, w, n, &waitRecorder{})
	ctx, cancel := context.WithCancel(testContext())

	done := make(chan *Report, 1)
	go func() {
		report, _ := r.Run(ctx)
		done <- report
	}()
	// cancel while the probe is in flight, then let it return
	<-w.entered
	cancel()
	close(w.block)
	select {
	case report := <-done:
		assert.Equal(t, ResultCancelled, report.Result)
		assert.Equal(t, PhaseWaiting, report.Final.Phase)
		assert.True(t, w.probeCtxOK)
		// the rest of the poll cycle runs before the waiting boundary
		assert.Equal(t, []int{20}, w.scales)
		assert.Len(t, n.messages, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled")
	}
}
