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

package watcher

import (
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/fastscaler/pkg/shared/util"
)

type options struct {
	// backoff used to retry the idempotent scale call.
	scaleBackoff wait.Backoff
	// whether to retry the scale call.
	retryScale bool
}

func defaultOptions() *options {
	return &options{
		scaleBackoff: util.DefaultIdempotentRetryBackoff,
		retryScale:   true,
	}
}

type Option func(*options)

// WithScaleBackoff sets the backoff used to retry failed scale calls.
func WithScaleBackoff(b wait.Backoff) Option {
	return func(o *options) {
		o.scaleBackoff = b
	}
}

// WithoutScaleRetry disables retrying failed scale calls.
func WithoutScaleRetry() Option {
	return func(o *options) {
		o.retryScale = false
	}
}
