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

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/notify"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
	"github.com/numaproj/fastscaler/pkg/watcher"
	"github.com/numaproj/fastscaler/pkg/workflow"
)

var (
	// ErrAlreadyRunning is returned when a run is launched for a handle which has an active run.
	ErrAlreadyRunning = errors.New("a run is already active for the handle")
	// ErrNotFound is returned when no run is known for the handle.
	ErrNotFound = errors.New("run not found")
)

// RunStatus is a snapshot of a workflow run.
type RunStatus struct {
	ID         string              `json:"id"`
	Handle     string              `json:"handle"`
	Spec       dfv1.AutoscalerSpec `json:"spec"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
	State      workflow.State      `json:"state"`
	Report     *workflow.Report    `json:"report,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// Active returns true if the run has not finished.
func (r RunStatus) Active() bool {
	return r.FinishedAt == nil
}

type run struct {
	lock   sync.RWMutex
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) snapshot() RunStatus {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.status
}

// Stats counts the runs handled by a supervisor.
type Stats struct {
	Launched int64 `json:"launched"`
	Finished int64 `json:"finished"`
	Active   int   `json:"active"`
}

// Supervisor runs independent workflow runs concurrently, at most one per deployment handle.
type Supervisor struct {
	watcher  watcher.Watcher
	notifier notify.Notifier
	options  *options

	lock    sync.RWMutex
	active  map[string]*run
	history *lru.Cache[string, RunStatus]
	wg      sync.WaitGroup

	launched *atomic.Int64
	finished *atomic.Int64
}

// NewSupervisor returns a supervisor sharing the watcher and the notifier between the runs.
func NewSupervisor(w watcher.Watcher, n notify.Notifier, opts ...Option) (*Supervisor, error) {
	supervisorOpts := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(supervisorOpts)
		}
	}
	history, err := lru.New[string, RunStatus](supervisorOpts.historySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create run history, %w", err)
	}
	return &Supervisor{
		watcher:  w,
		notifier: n,
		options:  supervisorOpts,
		active:   make(map[string]*run),
		history:  history,
		launched: atomic.NewInt64(0),
		finished: atomic.NewInt64(0),
	}, nil
}

// Launch starts a run for the handle. The run is detached from the cancellation of ctx, it is
// stopped by Stop or Shutdown.
func (s *Supervisor) Launch(ctx context.Context, handle string, spec dfv1.AutoscalerSpec) (RunStatus, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.active[handle]; ok {
		return RunStatus{}, fmt.Errorf("%w: %q", ErrAlreadyRunning, handle)
	}
	r := &run{
		status: RunStatus{
			ID:        uuid.NewString(),
			Handle:    handle,
			Spec:      spec,
			StartedAt: time.Now(),
			State:     workflow.InitialState(),
		},
		done: make(chan struct{}),
	}
	observer := func(state workflow.State) {
		r.lock.Lock()
		defer r.lock.Unlock()
		r.status.State = state
	}
	runnerOpts := append(append([]workflow.Option{}, s.options.runnerOptions...), workflow.WithObserver(observer))
	runner, err := workflow.NewRunner(handle, spec, s.watcher, s.notifier, runnerOpts...)
	if err != nil {
		return RunStatus{}, err
	}
	log := logging.FromContext(ctx).With(zap.String("runID", r.status.ID))
	runCtx, cancel := context.WithCancel(logging.WithLogger(context.WithoutCancel(ctx), log))
	r.cancel = cancel
	s.active[handle] = r
	s.launched.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		report, err := runner.Run(runCtx)
		s.finish(r, report, err)
	}()
	return r.snapshot(), nil
}

func (s *Supervisor) finish(r *run, report *workflow.Report, err error) {
	r.lock.Lock()
	now := time.Now()
	r.status.FinishedAt = &now
	r.status.Report = report
	if report != nil {
		r.status.State = report.Final
	}
	if err != nil {
		r.status.Error = err.Error()
	}
	status := r.status
	r.lock.Unlock()

	s.lock.Lock()
	if s.active[status.Handle] == r {
		delete(s.active, status.Handle)
	}
	s.history.Add(status.Handle, status)
	s.lock.Unlock()
	s.finished.Inc()
	close(r.done)
}

// Stop cancels the active run of the handle. The run ends at its next waiting boundary,
// Stop does not wait for it.
func (s *Supervisor) Stop(handle string) error {
	s.lock.RLock()
	r, ok := s.active[handle]
	s.lock.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, handle)
	}
	r.cancel()
	return nil
}

// Wait blocks until the active run of the handle finishes or ctx is done.
func (s *Supervisor) Wait(ctx context.Context, handle string) (RunStatus, error) {
	s.lock.RLock()
	r, ok := s.active[handle]
	s.lock.RUnlock()
	if !ok {
		if status, found := s.Get(handle); found {
			return status, nil
		}
		return RunStatus{}, fmt.Errorf("%w: %q", ErrNotFound, handle)
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return RunStatus{}, ctx.Err()
	}
}

// Get returns the active run of the handle, or the last finished one.
func (s *Supervisor) Get(handle string) (RunStatus, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if r, ok := s.active[handle]; ok {
		return r.snapshot(), true
	}
	return s.history.Get(handle)
}

// List returns the active runs followed by the finished ones, each sorted by handle.
func (s *Supervisor) List() []RunStatus {
	s.lock.RLock()
	defer s.lock.RUnlock()
	active := make([]RunStatus, 0, len(s.active))
	for _, r := range s.active {
		active = append(active, r.snapshot())
	}
	finished := make([]RunStatus, 0, s.history.Len())
	for _, h := range s.history.Keys() {
		if _, ok := s.active[h]; ok {
			continue
		}
		if status, ok := s.history.Peek(h); ok {
			finished = append(finished, status)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Handle < active[j].Handle })
	sort.Slice(finished, func(i, j int) bool { return finished[i].Handle < finished[j].Handle })
	return append(active, finished...)
}

func (s *Supervisor) Stats() Stats {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return Stats{
		Launched: s.launched.Load(),
		Finished: s.finished.Load(),
		Active:   len(s.active),
	}
}

// Shutdown cancels all the active runs and waits for them to finish or ctx to be done.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	log := logging.FromContext(ctx)
	s.lock.RLock()
	for _, r := range s.active {
		r.cancel()
	}
	s.lock.RUnlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("All workflow runs stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for the workflow runs to stop, %w", ctx.Err())
	}
}
