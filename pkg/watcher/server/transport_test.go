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
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/shared/clients/nats/test"
	"github.com/numaproj/fastscaler/pkg/watcher"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHTTPTransport(t *testing.T) {
	svc, backend := newTestService(false)
	srv := httptest.NewServer(NewServer(svc).Handler())
	defer srv.Close()

	w := watcher.NewHTTPWatcher(srv.URL+dfv1.DefaultWatcherHTTPPath, srv.Client())
	defer func() { _ = w.Close() }()
	ctx := testContext()

	sample, err := w.Probe(ctx, "svc-a")
	require.NoError(t, err)
	assert.Equal(t, 120.0, sample.Avg)

	require.NoError(t, w.Scale(ctx, "svc-a", dfv1.ScaleCommand{DesiredCount: 20}))
	desired, _ := backend.Desired(ctx, "svc-a")
	assert.Equal(t, 20, desired)

	_, err = w.Probe(ctx, "svc-unknown")
	assert.ErrorIs(t, err, watcher.ErrWatcherStatus)

	backend.SetLoad("svc-a", -1)
	sample, err = w.Probe(ctx, "svc-a")
	require.NoError(t, err)
	assert.True(t, sample.IsShutdown())
}

func TestHTTPTransport_StatusCodes(t *testing.T) {
	svc, _ := newTestService(false)
	h := NewServer(svc).Handler()
	for _, tc := range []struct {
		body string
		code int
	}{
		{`{"action":"probe","handle":"svc-a"}`, http.StatusOK},
		{`not json`, http.StatusBadRequest},
		{`{"action":"scale","handle":"svc-a"}`, http.StatusBadRequest},
		{`{"action":"probe","handle":"svc-x"}`, http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, dfv1.DefaultWatcherHTTPPath, bytes.NewBufferString(tc.body))
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.code, rec.Code, tc.body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNATSTransport(t *testing.T) {
	s := test.RunNatsServer(t)
	defer s.Shutdown()

	svc, backend := newTestService(false)
	serverConn, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer serverConn.Close()
	sub, err := SubscribeNATS(testContext(), serverConn, dfv1.DefaultWatcherSubject, svc)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, serverConn.Flush())

	clientConn, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	w := watcher.NewNATSWatcher(clientConn, dfv1.DefaultWatcherSubject)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithTimeout(testContext(), 5*time.Second)
	defer cancel()
	sample, err := w.Probe(ctx, "svc-a")
	require.NoError(t, err)
	assert.Equal(t, 120.0, sample.Avg)
	require.NoError(t, w.Scale(ctx, "svc-a", dfv1.ScaleCommand{DesiredCount: 15}))
	desired, _ := backend.Desired(ctx, "svc-a")
	assert.Equal(t, 15, desired)

	msg, err := clientConn.RequestWithContext(ctx, dfv1.DefaultWatcherSubject, []byte("garbage"))
	require.NoError(t, err)
	_, err = watcher.DecodeResponse(dfv1.WatcherActionProbe, msg.Data)
	assert.ErrorIs(t, err, watcher.ErrWatcherStatus)
}

func TestServer_Start(t *testing.T) {
	s := test.RunNatsServer(t)
	defer s.Shutdown()
	conn, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	svc, _ := newTestService(false)
	srv := NewServer(svc, WithPort(0), WithInsecure(true), WithNATS(conn, "fastscaler.test"))
	ctx, cancel := context.WithCancel(testContext())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	w := watcher.NewNATSWatcher(conn, "fastscaler.test")
	assert.Eventually(t, func() bool {
		rctx, rcancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer rcancel()
		_, err := w.Probe(rctx, "svc-a")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
