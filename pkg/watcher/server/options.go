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
	"time"

	"github.com/nats-io/nats.go"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

// DefaultLedgerTTL covers the retries of one scale call.
const DefaultLedgerTTL = 30 * time.Second

type options struct {
	// HTTP listening port.
	port int
	// serve plain HTTP instead of HTTPS with a self-signed certificate.
	insecure bool
	// optional NATS connection to serve the request/reply transport.
	natsConn *nats.Conn
	// NATS subject of the watcher requests.
	subject string
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		port:    dfv1.DefaultWatcherPort,
		subject: dfv1.DefaultWatcherSubject,
	}
}

// WithPort sets the HTTP listening port.
func WithPort(port int) Option {
	return func(o *options) {
		o.port = port
	}
}

// WithInsecure disables TLS.
func WithInsecure(insecure bool) Option {
	return func(o *options) {
		o.insecure = insecure
	}
}

// WithNATS serves the watcher contract on a NATS subject as well.
func WithNATS(conn *nats.Conn, subject string) Option {
	return func(o *options) {
		o.natsConn = conn
		if subject != "" {
			o.subject = subject
		}
	}
}
