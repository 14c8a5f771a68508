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

package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
	"github.com/numaproj/fastscaler/pkg/shared/util"
)

const transportHTTP = "http"

// maxResponseBytes caps the size of a watcher response body.
const maxResponseBytes = 1 << 20

type httpWatcher struct {
	url    string
	client *http.Client
	opts   *options
}

var _ Watcher = (*httpWatcher)(nil)

// NewHTTPWatcher returns a watcher which POSTs the request to the given url.
// The call deadline is taken from the context.
func NewHTTPWatcher(url string, client *http.Client, opts ...Option) Watcher {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if client == nil {
		client = &http.Client{}
	}
	return &httpWatcher{url: url, client: client, opts: o}
}

func (h *httpWatcher) Probe(ctx context.Context, handle string) (dfv1.MetricSample, error) {
	resp, err := h.call(ctx, probeRequest(handle))
	if err != nil {
		return dfv1.MetricSample{}, err
	}
	return ToSample(resp), nil
}

func (h *httpWatcher) Scale(ctx context.Context, handle string, cmd dfv1.ScaleCommand) error {
	req := scaleRequest(handle, cmd)
	if !h.opts.retryScale {
		_, err := h.call(ctx, req)
		return err
	}
	return util.RetryIdempotent(ctx, h.opts.scaleBackoff, func(ctx context.Context) error {
		_, err := h.call(ctx, req)
		if err != nil && !errors.Is(err, ErrTransport) {
			return util.Permanent(err)
		}
		return err
	})
}

func (h *httpWatcher) call(ctx context.Context, req dfv1.WatcherRequest) (*dfv1.WatcherResponse, error) {
	start := time.Now()
	defer func() {
		metrics.WatcherCallTime.WithLabelValues(transportHTTP, string(req.Action)).Observe(time.Since(start).Seconds())
	}()
	body, err := EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode watcher request, %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body, %v", ErrTransport, err)
	}
	// a 5xx is a failure of the watcher or its backend, not of the request, so it can be retried
	if httpResp.StatusCode >= http.StatusInternalServerError {
		resp := &dfv1.WatcherResponse{}
		if len(b) > 0 && json.Unmarshal(b, resp) == nil && resp.Error != "" {
			return nil, fmt.Errorf("%w: status code %d, %s", ErrTransport, httpResp.StatusCode, resp.Error)
		}
		return nil, fmt.Errorf("%w: status code %d", ErrTransport, httpResp.StatusCode)
	}
	return DecodeResponse(req.Action, b)
}

func (h *httpWatcher) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
