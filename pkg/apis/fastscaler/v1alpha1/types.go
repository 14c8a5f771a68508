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

package v1alpha1

import (
	"math"
	"time"
)

// MetricSample is the load signal returned by one probe.
type MetricSample struct {
	Avg float64 `json:"avg"`
	// Raw carries any auxiliary payload returned by the watcher.
	Raw map[string]interface{} `json:"raw,omitempty"`
}

// IsShutdown returns true if the sample carries the shutdown sentinel.
func (m MetricSample) IsShutdown() bool {
	return m.Avg < 0
}

// IsValid returns false for samples which can not be classified. Any negative value,
// -Inf included, is the shutdown sentinel and is valid.
func (m MetricSample) IsValid() bool {
	if m.IsShutdown() {
		return true
	}
	return !math.IsNaN(m.Avg) && !math.IsInf(m.Avg, 1)
}

// ScaleCommand is sent to the scaler. The workflow only waits for the call to complete,
// not for the replicas to converge.
type ScaleCommand struct {
	DesiredCount int `json:"desiredCount"`
}

// NotificationMessage describes a triggered tier.
type NotificationMessage struct {
	Subject      string       `json:"subject"`
	Handle       string       `json:"handle"`
	Tier         Tier         `json:"tier"`
	DesiredCount int          `json:"desiredCount"`
	Payload      MetricSample `json:"payload"`
	Timestamp    time.Time    `json:"timestamp"`
}

// WatcherAction is the action requested from a watcher.
type WatcherAction string

const (
	WatcherActionProbe WatcherAction = "probe"
	WatcherActionScale WatcherAction = "scale"
)

// WatcherStatus is the status of a watcher response.
type WatcherStatus string

const (
	WatcherStatusOK    WatcherStatus = "ok"
	WatcherStatusError WatcherStatus = "error"
)

// WatcherRequest is the request sent to a watcher.
type WatcherRequest struct {
	Action       WatcherAction `json:"action"`
	Handle       string        `json:"handle"`
	DesiredCount *int          `json:"desiredCount,omitempty"`
}

// WatcherResponse is the response returned by a watcher.
type WatcherResponse struct {
	Avg    *float64               `json:"avg,omitempty"`
	Raw    map[string]interface{} `json:"raw,omitempty"`
	Status WatcherStatus          `json:"status"`
	Error  string                 `json:"error,omitempty"`
}
