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

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
)

// defaultFlushTimeout bounds the flush when the caller sets no deadline.
const defaultFlushTimeout = 10 * time.Second

type natsNotifier struct {
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier returns a notifier which publishes to a NATS subject.
// The notifier owns the connection.
func NewNATSNotifier(conn *nats.Conn, subject string) Notifier {
	return &natsNotifier{conn: conn, subject: subject}
}

func (n *natsNotifier) Name() string {
	return "nats"
}

func (n *natsNotifier) Notify(ctx context.Context, msg dfv1.NotificationMessage) error {
	err := n.publish(ctx, msg)
	if err != nil {
		metrics.NotificationErrors.WithLabelValues(n.Name()).Inc()
		return err
	}
	metrics.NotificationsPublished.WithLabelValues(n.Name()).Inc()
	return nil
}

func (n *natsNotifier) publish(ctx context.Context, msg dfv1.NotificationMessage) error {
	b, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification, %w", err)
	}
	if err := n.conn.Publish(n.subject, b); err != nil {
		return fmt.Errorf("failed to publish notification to subject %q, %w", n.subject, err)
	}
	// make sure the server has received the message before returning
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush notification to subject %q, %w", n.subject, err)
	}
	return nil
}

func (n *natsNotifier) Close() error {
	if n.conn.IsClosed() {
		return nil
	}
	return n.conn.Drain()
}
