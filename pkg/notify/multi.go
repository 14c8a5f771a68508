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

	"go.uber.org/multierr"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

type multiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier returns a notifier which publishes to all the given notifiers in order.
// Every notifier is attempted, the errors are combined.
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return &multiNotifier{notifiers: notifiers}
}

func (m *multiNotifier) Name() string {
	return "multi"
}

func (m *multiNotifier) Notify(ctx context.Context, msg dfv1.NotificationMessage) error {
	var err error
	for _, n := range m.notifiers {
		if e := n.Notify(ctx, msg); e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", n.Name(), e))
		}
	}
	return err
}

func (m *multiNotifier) Close() error {
	var err error
	for _, n := range m.notifiers {
		err = multierr.Append(err, n.Close())
	}
	return err
}
