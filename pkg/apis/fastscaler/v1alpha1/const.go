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

const (
	Project = "fastscaler"

	// Components
	ComponentController = "controller"
	ComponentWatcher    = "watcher"

	// Environment variables
	EnvDebug           = "FASTSCALER_DEBUG"
	EnvConfigFile      = "FASTSCALER_CONFIG"
	EnvDisableScaleIn  = "FASTSCALER_DISABLE_SCALE_IN"
	EnvRedisURL        = "FASTSCALER_REDIS_URL"
	EnvRedisPassword   = "FASTSCALER_REDIS_PASSWORD"
	EnvNATSURL         = "FASTSCALER_NATS_URL"
	EnvShutdownTimeout = "FASTSCALER_SHUTDOWN_TIMEOUT"

	// Workflow defaults
	DefaultShortWaitSeconds   = 3
	DefaultLongWaitSeconds    = 60
	DefaultMaxLifetimeSeconds = 24 * 60 * 60
	DefaultCallTimeoutSeconds = 60
	DefaultInitialTaskNumber  = 2

	// DefaultNotificationSubject is the subject of the message published when a tier is triggered.
	DefaultNotificationSubject = "Fargate Start Scaling Out"

	// Watcher transport defaults
	DefaultWatcherSubject      = "fastscaler.watcher"
	DefaultNotificationTopic   = "fastscaler-notifications"
	DefaultWatcherHTTPPath     = "/api/v1/watcher"
	DefaultWatcherPort         = 8443
	DefaultAPIServerPort       = 8080
	DefaultMetricsPort         = 2469
	DefaultLedgerKeyPrefix     = "fastscaler:ledger:"
	DefaultFinishedRunsHistory = 100
)
