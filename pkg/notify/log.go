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

	"go.uber.org/zap"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
)

// logNotifier writes the notifications to the log.
type logNotifier struct {
	log *zap.SugaredLogger
}

// NewLogNotifier returns a notifier which only logs the messages.
func NewLogNotifier(log *zap.SugaredLogger) Notifier {
	return &logNotifier{log: log.Named("log-notifier")}
}

func (l *logNotifier) Name() string {
	return "log"
}

func (l *logNotifier) Notify(_ context.Context, msg dfv1.NotificationMessage) error {
	l.log.Infow(msg.Subject,
		zap.String("handle", msg.Handle),
		zap.Stringer("tier", msg.Tier),
		zap.Int("desiredCount", msg.DesiredCount),
		zap.Float64("avg", msg.Payload.Avg),
		zap.Time("timestamp", msg.Timestamp))
	metrics.NotificationsPublished.WithLabelValues(l.Name()).Inc()
	return nil
}

func (l *logNotifier) Close() error {
	return nil
}
