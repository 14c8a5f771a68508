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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"k8s.io/utils/ptr"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
)

type countingBackend struct {
	*StaticBackend
	sets int
}

func (c *countingBackend) SetDesired(ctx context.Context, handle string, count int) error {
	c.sets++
	return c.StaticBackend.SetDesired(ctx, handle, count)
}

func testContext() context.Context {
	return logging.WithLogger(context.Background(), zap.NewNop().Sugar())
}

func newTestService(disableScaleIn bool) (*Service, *countingBackend) {
	backend := &countingBackend{StaticBackend: NewStaticBackend(dfv1.DefaultInitialTaskNumber)}
	backend.SetLoad("svc-a", 120)
	return NewService(backend, NewLRULedger(10, time.Minute), disableScaleIn), backend
}

func scaleRequest(handle string, desired int) dfv1.WatcherRequest {
	return dfv1.WatcherRequest{Action: dfv1.WatcherActionScale, Handle: handle, DesiredCount: ptr.To(desired)}
}

func TestService_Probe(t *testing.T) {
	svc, _ := newTestService(false)
	resp, err := svc.Handle(testContext(), dfv1.WatcherRequest{Action: dfv1.WatcherActionProbe, Handle: "svc-a"})
	require.NoError(t, err)
	assert.Equal(t, dfv1.WatcherStatusOK, resp.Status)
	require.NotNil(t, resp.Avg)
	assert.Equal(t, 120.0, *resp.Avg)
	assert.Equal(t, 2, resp.Raw["desiredCount"])

	resp, err = svc.Handle(testContext(), dfv1.WatcherRequest{Action: dfv1.WatcherActionProbe, Handle: "svc-b"})
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.Equal(t, dfv1.WatcherStatusError, resp.Status)
	assert.NotEmpty(t, resp.Error)
}

func TestService_ScaleIdempotent(t *testing.T) {
	svc, backend := newTestService(false)
	ctx := testContext()
	for i := 0; i < 3; i++ {
		resp, err := svc.Handle(ctx, scaleRequest("svc-a", 20))
		require.NoError(t, err)
		assert.Equal(t, dfv1.WatcherStatusOK, resp.Status)
	}
	assert.Equal(t, 1, backend.sets)
	desired, err := backend.Desired(ctx, "svc-a")
	require.NoError(t, err)
	assert.Equal(t, 20, desired)
}

func TestService_ScaleIn(t *testing.T) {
	ctx := testContext()

	t.Run("disabled", func(t *testing.T) {
		svc, backend := newTestService(true)
		_, err := svc.Handle(ctx, scaleRequest("svc-a", 20))
		require.NoError(t, err)
		resp, err := svc.Handle(ctx, scaleRequest("svc-a", 10))
		require.NoError(t, err)
		assert.Equal(t, dfv1.WatcherStatusOK, resp.Status)
		desired, _ := backend.Desired(ctx, "svc-a")
		assert.Equal(t, 20, desired)
		// scale out is still applied
		_, err = svc.Handle(ctx, scaleRequest("svc-a", 25))
		require.NoError(t, err)
		desired, _ = backend.Desired(ctx, "svc-a")
		assert.Equal(t, 25, desired)
	})

	t.Run("enabled", func(t *testing.T) {
		svc, backend := newTestService(false)
		_, err := svc.Handle(ctx, scaleRequest("svc-a", 20))
		require.NoError(t, err)
		_, err = svc.Handle(ctx, scaleRequest("svc-a", 10))
		require.NoError(t, err)
		desired, _ := backend.Desired(ctx, "svc-a")
		assert.Equal(t, 10, desired)
	})
}

func TestService_BadRequests(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := testContext()
	for name, req := range map[string]dfv1.WatcherRequest{
		"unknown action":   {Action: "restart", Handle: "svc-a"},
		"empty handle":     {Action: dfv1.WatcherActionProbe},
		"missing desired":  {Action: dfv1.WatcherActionScale, Handle: "svc-a"},
		"negative desired": scaleRequest("svc-a", -1),
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := svc.Handle(ctx, req)
			assert.True(t, errors.Is(err, errBadRequest))
			assert.Equal(t, dfv1.WatcherStatusError, resp.Status)
		})
	}
	_, err := svc.Handle(ctx, scaleRequest("svc-b", 3))
	assert.ErrorIs(t, err, ErrUnknownHandle)
}
