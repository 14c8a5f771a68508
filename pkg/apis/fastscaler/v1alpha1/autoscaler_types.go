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
	"fmt"
	"time"
)

// AutoscalerSpec is the configuration surface consumed by a workflow run at start.
type AutoscalerSpec struct {
	// Ladder is the tier table, defaults to DefaultLadder().
	// +optional
	Ladder Ladder `json:"ladder,omitempty"`
	// Seconds to wait before resampling after a non scaling tier, a failed probe or no tier matched.
	// +optional
	ShortWaitSeconds *uint32 `json:"shortWaitSeconds,omitempty"`
	// Seconds to wait before resampling after a scale command.
	// +optional
	LongWaitSeconds *uint32 `json:"longWaitSeconds,omitempty"`
	// Maximum lifetime of a run in seconds, defaults to 24 hours.
	// +optional
	MaxLifetimeSeconds *uint32 `json:"maxLifetimeSeconds,omitempty"`
	// Latency budget of each watcher or notifier call.
	// +optional
	CallTimeoutSeconds *uint32 `json:"callTimeoutSeconds,omitempty"`
	// SkipUnchangedNotify suppresses the notification when the tier is the same as the previous poll.
	// +optional
	SkipUnchangedNotify *bool `json:"skipUnchangedNotify,omitempty"`
	// Subject of the notification messages.
	// +optional
	NotificationSubject string `json:"notificationSubject,omitempty"`
}

func (s AutoscalerSpec) GetLadder() Ladder {
	if len(s.Ladder) > 0 {
		return s.Ladder
	}
	return DefaultLadder()
}

func (s AutoscalerSpec) GetShortWait() time.Duration {
	if s.ShortWaitSeconds != nil {
		return time.Duration(*s.ShortWaitSeconds) * time.Second
	}
	return DefaultShortWaitSeconds * time.Second
}

func (s AutoscalerSpec) GetLongWait() time.Duration {
	if s.LongWaitSeconds != nil {
		return time.Duration(*s.LongWaitSeconds) * time.Second
	}
	return DefaultLongWaitSeconds * time.Second
}

func (s AutoscalerSpec) GetMaxLifetime() time.Duration {
	if s.MaxLifetimeSeconds != nil {
		return time.Duration(*s.MaxLifetimeSeconds) * time.Second
	}
	return DefaultMaxLifetimeSeconds * time.Second
}

func (s AutoscalerSpec) GetCallTimeout() time.Duration {
	if s.CallTimeoutSeconds != nil && *s.CallTimeoutSeconds > 0 {
		return time.Duration(*s.CallTimeoutSeconds) * time.Second
	}
	return DefaultCallTimeoutSeconds * time.Second
}

func (s AutoscalerSpec) GetNotificationSubject() string {
	if s.NotificationSubject != "" {
		return s.NotificationSubject
	}
	return DefaultNotificationSubject
}

func (s AutoscalerSpec) GetSkipUnchangedNotify() bool {
	return s.SkipUnchangedNotify != nil && *s.SkipUnchangedNotify
}

// Validate checks the spec is able to drive a workflow run.
func (s AutoscalerSpec) Validate() error {
	if err := s.GetLadder().Validate(); err != nil {
		return fmt.Errorf("invalid tier ladder: %w", err)
	}
	if s.GetShortWait() <= 0 {
		return fmt.Errorf("shortWaitSeconds must be > 0")
	}
	if s.GetLongWait() < s.GetShortWait() {
		return fmt.Errorf("longWaitSeconds (%v) must not be shorter than shortWaitSeconds (%v)", s.GetLongWait(), s.GetShortWait())
	}
	if s.GetMaxLifetime() <= 0 {
		return fmt.Errorf("maxLifetimeSeconds must be > 0")
	}
	return nil
}
