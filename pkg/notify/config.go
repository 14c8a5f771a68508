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

	natsclient "github.com/numaproj/fastscaler/pkg/shared/clients/nats"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
)

// Config selects the notifiers to publish to. The log notifier is used when none is configured.
type Config struct {
	// Log enables the log notifier.
	Log bool `json:"log"`
	// +optional
	NATS *NATSConfig `json:"nats,omitempty"`
	// +optional
	Kafka *KafkaConfig `json:"kafka,omitempty"`
	// +optional
	Webhook *WebhookConfig `json:"webhook,omitempty"`
}

type NATSConfig struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	// Config is a yaml representation of the sarama config.
	// +optional
	Config string `json:"config,omitempty"`
}

type WebhookConfig struct {
	URL string `json:"url"`
	// +optional
	Headers map[string]string `json:"headers,omitempty"`
}

func (c Config) Validate() error {
	if x := c.NATS; x != nil {
		if x.URL == "" {
			return fmt.Errorf("nats notifier url is required")
		}
		if x.Subject == "" {
			return fmt.Errorf("nats notifier subject is required")
		}
	}
	if x := c.Kafka; x != nil && len(x.Brokers) == 0 {
		return fmt.Errorf("kafka notifier brokers are required")
	}
	if x := c.Webhook; x != nil && x.URL == "" {
		return fmt.Errorf("webhook notifier url is required")
	}
	return nil
}

// New builds the configured notifiers and combines them into one.
func New(ctx context.Context, c Config) (Notifier, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx)
	var notifiers []Notifier
	closeAll := func() error {
		var err error
		for _, n := range notifiers {
			err = multierr.Append(err, n.Close())
		}
		return err
	}
	if x := c.NATS; x != nil {
		conn, err := natsclient.NewConn(ctx, x.URL)
		if err != nil {
			return nil, multierr.Append(err, closeAll())
		}
		notifiers = append(notifiers, NewNATSNotifier(conn, x.Subject))
	}
	if x := c.Kafka; x != nil {
		n, err := NewKafkaNotifier(x.Brokers, x.Topic, x.Config)
		if err != nil {
			return nil, multierr.Append(err, closeAll())
		}
		notifiers = append(notifiers, n)
	}
	if x := c.Webhook; x != nil {
		notifiers = append(notifiers, NewWebhookNotifier(x.URL, x.Headers, nil))
	}
	if c.Log || len(notifiers) == 0 {
		notifiers = append(notifiers, NewLogNotifier(log))
	}
	names := make([]string, 0, len(notifiers))
	for _, n := range notifiers {
		names = append(names, n.Name())
	}
	log.Infow("Notifiers configured", "notifiers", names)
	return NewMultiNotifier(notifiers...), nil
}
