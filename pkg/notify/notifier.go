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

	"github.com/goccy/go-json"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

// Notifier publishes a notification when a tier is triggered. Delivery is at-most-once,
// a failed publish is reported to the caller and never retried.
type Notifier interface {
	// Name identifies the notifier in logs and metrics.
	Name() string
	Notify(ctx context.Context, msg dfv1.NotificationMessage) error
	Close() error
}

// Envelope is the wire format of a notification.
type Envelope struct {
	Subject string                   `json:"subject"`
	Body    dfv1.NotificationMessage `json:"body"`
}

// Encode returns the wire format of a notification message.
func Encode(msg dfv1.NotificationMessage) ([]byte, error) {
	return json.Marshal(Envelope{Subject: msg.Subject, Body: msg})
}

// Decode parses the wire format of a notification message.
func Decode(b []byte) (*Envelope, error) {
	e := &Envelope{}
	if err := json.Unmarshal(b, e); err != nil {
		return nil, err
	}
	return e, nil
}
