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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
)

type webhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookNotifier returns a notifier which POSTs the notification to an HTTP endpoint.
func NewWebhookNotifier(url string, headers map[string]string, client *http.Client) Notifier {
	if client == nil {
		client = &http.Client{}
	}
	return &webhookNotifier{url: url, headers: headers, client: client}
}

func (w *webhookNotifier) Name() string {
	return "webhook"
}

func (w *webhookNotifier) Notify(ctx context.Context, msg dfv1.NotificationMessage) error {
	if err := w.post(ctx, msg); err != nil {
		metrics.NotificationErrors.WithLabelValues(w.Name()).Inc()
		return err
	}
	metrics.NotificationsPublished.WithLabelValues(w.Name()).Inc()
	return nil
}

func (w *webhookNotifier) post(ctx context.Context, msg dfv1.NotificationMessage) error {
	b, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification, %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post notification, %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned status code %d", resp.StatusCode)
	}
	return nil
}

func (w *webhookNotifier) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
