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

package workflow

import (
	"k8s.io/utils/clock"
)

type options struct {
	// clock used to measure the lifetime and to wait between the polls.
	clock clock.Clock
	// observer is called with every state reached by the run.
	observer func(State)
	// span of the moving average of the load signal.
	ewmaSpan float64
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		clock:    clock.RealClock{},
		observer: func(State) {},
		ewmaSpan: 30,
	}
}

// WithClock sets the clock, used by tests to drive the waits.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithObserver sets a function called with every state reached by the run.
// It is called from the run goroutine and must not block.
func WithObserver(f func(State)) Option {
	return func(o *options) {
		o.observer = f
	}
}

// WithEWMASpan sets the span of the moving average of the load signal.
func WithEWMASpan(span float64) Option {
	return func(o *options) {
		o.ewmaSpan = span
	}
}
