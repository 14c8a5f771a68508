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

package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

// ErrUnknownHandle is returned by a backend for a deployment it does not manage.
var ErrUnknownHandle = errors.New("unknown deployment handle")

// Backend measures the load of a deployment and applies its desired task count.
type Backend interface {
	// Load returns the current load sample.
	Load(ctx context.Context, handle string) (dfv1.MetricSample, error)
	// Desired returns the current desired task count.
	Desired(ctx context.Context, handle string) (int, error)
	// SetDesired sets the desired task count.
	SetDesired(ctx context.Context, handle string, count int) error
}

type deployment struct {
	avg     float64
	desired int
}

// StaticBackend is an in-memory backend whose load is set by the caller.
type StaticBackend struct {
	lock           sync.RWMutex
	initialDesired int
	deployments    map[string]*deployment
}

var _ Backend = (*StaticBackend)(nil)

// NewStaticBackend returns an in-memory backend, new deployments start with the initial desired count.
func NewStaticBackend(initialDesired int) *StaticBackend {
	return &StaticBackend{
		initialDesired: initialDesired,
		deployments:    make(map[string]*deployment),
	}
}

// SetLoad sets the load of a deployment, registering it if needed.
func (s *StaticBackend) SetLoad(handle string, avg float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	d, ok := s.deployments[handle]
	if !ok {
		d = &deployment{desired: s.initialDesired}
		s.deployments[handle] = d
	}
	d.avg = avg
}

func (s *StaticBackend) Load(_ context.Context, handle string) (dfv1.MetricSample, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	d, ok := s.deployments[handle]
	if !ok {
		return dfv1.MetricSample{}, fmt.Errorf("%w: %q", ErrUnknownHandle, handle)
	}
	return dfv1.MetricSample{Avg: d.avg, Raw: map[string]interface{}{"desiredCount": d.desired}}, nil
}

func (s *StaticBackend) Desired(_ context.Context, handle string) (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	d, ok := s.deployments[handle]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownHandle, handle)
	}
	return d.desired, nil
}

func (s *StaticBackend) SetDesired(_ context.Context, handle string, count int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	d, ok := s.deployments[handle]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownHandle, handle)
	}
	d.desired = count
	return nil
}
