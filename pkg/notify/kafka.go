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

	"github.com/IBM/sarama"
	"github.com/spf13/viper"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
)

type kafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier returns a notifier which produces to a kafka topic.
// saramaConfig is an optional yaml representation of the sarama config.
func NewKafkaNotifier(brokers []string, topic string, saramaConfig string) (Notifier, error) {
	config, err := producerConfig(saramaConfig)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer. %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, topic), nil
}

// producerConfig builds the config of the notification producer. Notifications are
// delivered at most once, so the producer does not retry unless the yaml says so.
func producerConfig(yaml string) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = dfv1.Project
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 0
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	if yaml != "" {
		v := viper.New()
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewBufferString(yaml)); err != nil {
			return nil, fmt.Errorf("failed to read the sarama config, %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unable to decode the sarama config, %w", err)
		}
	}
	// required by the sync producer, whatever the yaml says
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama config, %w", err)
	}
	return cfg, nil
}

// NewKafkaNotifierWithProducer returns a kafka notifier using an existing producer.
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) Notifier {
	if topic == "" {
		topic = dfv1.DefaultNotificationTopic
	}
	return &kafkaNotifier{producer: producer, topic: topic}
}

func (k *kafkaNotifier) Name() string {
	return "kafka"
}

// Notify produces the message keyed by the deployment handle, so that the notifications
// of a deployment keep their order within a partition.
func (k *kafkaNotifier) Notify(_ context.Context, msg dfv1.NotificationMessage) error {
	b, err := Encode(msg)
	if err != nil {
		metrics.NotificationErrors.WithLabelValues(k.Name()).Inc()
		return fmt.Errorf("failed to encode notification, %w", err)
	}
	message := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(msg.Handle),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := k.producer.SendMessage(message); err != nil {
		metrics.NotificationErrors.WithLabelValues(k.Name()).Inc()
		return fmt.Errorf("failed to produce notification to topic %q, %w", k.topic, err)
	}
	metrics.NotificationsPublished.WithLabelValues(k.Name()).Inc()
	return nil
}

func (k *kafkaNotifier) Close() error {
	return k.producer.Close()
}
