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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
	"github.com/numaproj/fastscaler/pkg/shared/util"
)

const transportNATS = "nats"

type natsWatcher struct {
	conn    *nats.Conn
	subject string
	opts    *options
}

var _ Watcher = (*natsWatcher)(nil)

// NewNATSWatcher returns a watcher which sends request/reply messages on the given subject.
// The watcher owns the connection and drains it on Close.
func NewNATSWatcher(conn *nats.Conn, subject string, opts ...Option) Watcher {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if subject == "" {
		subject = dfv1.DefaultWatcherSubject
	}
	return &natsWatcher{conn: conn, subject: subject, opts: o}
}

func (n *natsWatcher) Probe(ctx context.Context, handle string) (dfv1.MetricSample, error) {
	resp, err := n.call(ctx, probeRequest(handle))
	if err != nil {
		return dfv1.MetricSample{}, err
	}
	return ToSample(resp), nil
}

func (n *natsWatcher) Scale(ctx context.Context, handle string, cmd dfv1.ScaleCommand) error {
	req := scaleRequest(handle, cmd)
	if !n.opts.retryScale {
		_, err := n.call(ctx, req)
		return err
	}
	return util.RetryIdempotent(ctx, n.opts.scaleBackoff, func(ctx context.Context) error {
		_, err := n.call(ctx, req)
		if err != nil && !errors.Is(err, ErrTransport) {
			return util.Permanent(err)
		}
		return err
	})
}

func (n *natsWatcher) call(ctx context.Context, req dfv1.WatcherRequest) (*dfv1.WatcherResponse, error) {
	start := time.Now()
	defer func() {
		metrics.WatcherCallTime.WithLabelValues(transportNATS, string(req.Action)).Observe(time.Since(start).Seconds())
	}()
	body, err := EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode watcher request, %w", err)
	}
	msg, err := n.conn.RequestWithContext(ctx, n.subject, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return DecodeResponse(req.Action, msg.Data)
}

func (n *natsWatcher) Close() error {
	if n.conn.IsClosed() {
		return nil
	}
	return n.conn.Drain()
}
