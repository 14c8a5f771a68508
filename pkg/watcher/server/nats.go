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
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
)

const (
	transportNATS = "nats"
	// queueGroup load balances the requests between the watcher replicas.
	queueGroup = "fastscaler-watcher"
)

// SubscribeNATS serves the watcher contract on the subject until the subscription is drained.
func SubscribeNATS(ctx context.Context, conn *nats.Conn, subject string, svc *Service) (*nats.Subscription, error) {
	log := logging.FromContext(ctx)
	sub, err := conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		req := dfv1.WatcherRequest{}
		var resp dfv1.WatcherResponse
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			resp = errorResponse(err)
			metrics.WatcherRequests.WithLabelValues(transportNATS, "", "error").Inc()
		} else if resp, err = svc.Handle(ctx, req); err != nil {
			metrics.WatcherRequests.WithLabelValues(transportNATS, string(req.Action), "error").Inc()
		} else {
			metrics.WatcherRequests.WithLabelValues(transportNATS, string(req.Action), "ok").Inc()
		}
		b, err := json.Marshal(resp)
		if err != nil {
			log.Errorw("Failed to encode watcher response", zap.Error(err))
			return
		}
		if err := msg.Respond(b); err != nil {
			log.Errorw("Failed to respond to watcher request", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %q, %w", subject, err)
	}
	return sub, nil
}
