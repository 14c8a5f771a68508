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

package util

import (
	"context"
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultIdempotentRetryBackoff is used to retry calls which are safe to repeat, e.g. a scale
// request for an absolute replica count.
var DefaultIdempotentRetryBackoff = wait.Backoff{
	Steps:    3,
	Duration: 500 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}

// permanentError marks an error which must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }

func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps an error so that RetryIdempotent stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryIdempotent calls fn until it succeeds, returns a permanent error, the backoff steps are
// exhausted or the context is done. The last error returned by fn is returned.
func RetryIdempotent(ctx context.Context, backoff wait.Backoff, fn func(context.Context) error) error {
	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		lastErr = fn(ctx)
		if lastErr == nil {
			return true, nil
		}
		var pe *permanentError
		if errors.As(lastErr, &pe) {
			return false, pe.err
		}
		return false, nil
	})
	if err == nil {
		return nil
	}
	if lastErr != nil {
		var pe *permanentError
		if errors.As(lastErr, &pe) {
			return pe.err
		}
		return lastErr
	}
	return err
}
