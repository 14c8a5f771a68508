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
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

var (
	// ErrTransport is returned when the watcher could not be reached.
	ErrTransport = errors.New("watcher transport error")
	// ErrMalformedResponse is returned when the watcher response can not be decoded or validated.
	ErrMalformedResponse = errors.New("malformed watcher response")
	// ErrWatcherStatus is returned when the watcher answered with an error status.
	ErrWatcherStatus = errors.New("watcher returned an error")
)

// Watcher is the request/response contract to the external component which measures
// the load of a deployment and applies the desired task count.
type Watcher interface {
	// Probe returns the current load sample of the deployment.
	Probe(ctx context.Context, handle string) (dfv1.MetricSample, error)
	// Scale sets the desired task count of the deployment. It is idempotent.
	Scale(ctx context.Context, handle string, cmd dfv1.ScaleCommand) error
	// Close releases the underlying resources.
	Close() error
}

// EncodeRequest returns the wire format of a watcher request.
func EncodeRequest(req dfv1.WatcherRequest) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeResponse decodes and validates a watcher response for the given action.
func DecodeResponse(action dfv1.WatcherAction, b []byte) (*dfv1.WatcherResponse, error) {
	resp := &dfv1.WatcherResponse{}
	if err := json.Unmarshal(b, resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	switch resp.Status {
	case dfv1.WatcherStatusOK:
	case dfv1.WatcherStatusError:
		return nil, fmt.Errorf("%w: %s", ErrWatcherStatus, resp.Error)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, resp.Status)
	}
	if action == dfv1.WatcherActionProbe {
		if resp.Avg == nil {
			return nil, fmt.Errorf("%w: missing avg", ErrMalformedResponse)
		}
		if !(dfv1.MetricSample{Avg: *resp.Avg}).IsValid() {
			return nil, fmt.Errorf("%w: invalid avg %v", ErrMalformedResponse, *resp.Avg)
		}
	}
	return resp, nil
}

// ToSample converts a validated probe response to a metric sample.
func ToSample(resp *dfv1.WatcherResponse) dfv1.MetricSample {
	return dfv1.MetricSample{Avg: *resp.Avg, Raw: resp.Raw}
}

func probeRequest(handle string) dfv1.WatcherRequest {
	return dfv1.WatcherRequest{Action: dfv1.WatcherActionProbe, Handle: handle}
}

func scaleRequest(handle string, cmd dfv1.ScaleCommand) dfv1.WatcherRequest {
	desired := cmd.DesiredCount
	return dfv1.WatcherRequest{Action: dfv1.WatcherActionScale, Handle: handle, DesiredCount: &desired}
}
