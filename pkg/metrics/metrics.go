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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion   = "version"
	LabelPlatform  = "platform"
	LabelComponent = "component"
	LabelHandle    = "handle"
	LabelTier      = "tier"
	LabelResult    = "result"
	LabelAction    = "action"
	LabelNotifier  = "notifier"
	LabelTransport = "transport"
	LabelReason    = "reason"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by fastscaler binary version, platform, and component",
	}, []string{LabelComponent, LabelVersion, LabelPlatform})
)

// Workflow metrics
var (
	// PollsTotal is the number of probes issued by the workflow runs.
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "workflow",
		Name:      "polls_total",
		Help:      "Total number of probe calls issued",
	}, []string{LabelHandle})

	// ProbeErrors counts failed or malformed probes.
	ProbeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "workflow",
		Name:      "probe_error_total",
		Help:      "Total number of failed probes",
	}, []string{LabelHandle})

	// TierClassifications counts the classified samples per tier.
	TierClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "workflow",
		Name:      "tier_total",
		Help:      "Total number of samples classified in each tier",
	}, []string{LabelHandle, LabelTier})

	// CurrentTier is the tier of the last classified sample.
	CurrentTier = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "workflow",
		Name:      "current_tier",
		Help:      "Ordinal of the tier of the last classified sample",
	}, []string{LabelHandle})

	// LoadAverage is the last load signal returned by the probe.
	LoadAverage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "workflow",
		Name:      "load_avg",
		Help:      "Last load signal returned by the probe",
	}, []string{LabelHandle})

	// LoadAverageEWMA is the exponentially weighted moving average of the load signal.
	LoadAverageEWMA = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "workflow",
		Name:      "load_avg_ewma",
		Help:      "Exponentially weighted moving average of the load signal",
	}, []string{LabelHandle})

	// NotifyErrors counts the notifications which failed to publish.
	NotifyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "workflow",
		Name:      "notify_error_total",
		Help:      "Total number of failed notifications",
	}, []string{LabelHandle})

	// ScaleCommands counts the scale commands issued.
	ScaleCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "workflow",
		Name:      "scale_total",
		Help:      "Total number of scale commands issued",
	}, []string{LabelHandle})

	// ScaleErrors counts the scale commands which failed.
	ScaleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "workflow",
		Name:      "scale_error_total",
		Help:      "Total number of failed scale commands",
	}, []string{LabelHandle})

	// RunResults counts the terminated runs by result.
	RunResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "workflow",
		Name:      "run_total",
		Help:      "Total number of terminated runs by result",
	}, []string{LabelResult})

	// ActiveRuns is the number of runs currently executing.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "workflow",
		Name:      "active_runs",
		Help:      "Number of workflow runs currently executing",
	})
)

// Watcher and notifier metrics
var (
	// WatcherCallTime is a histogram of the watcher call latency in seconds.
	WatcherCallTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "watcher",
		Name:      "call_duration_seconds",
		Help:      "Latency of watcher calls (1 millisecond to 60 seconds)",
		Buckets:   prometheus.ExponentialBucketsRange(0.001, 60, 10),
	}, []string{LabelTransport, LabelAction})

	// WatcherRequests counts the requests served by the watcher server.
	WatcherRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "watcher",
		Name:      "request_total",
		Help:      "Total number of requests served by the watcher",
	}, []string{LabelTransport, LabelAction, LabelResult})

	// WatcherScaleSkipped counts the scale requests that did not reach the backend.
	WatcherScaleSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "watcher",
		Name:      "scale_skipped_total",
		Help:      "Total number of scale requests skipped by the watcher",
	}, []string{LabelHandle, LabelReason})

	// NotificationsPublished counts the notifications published per notifier.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "notifier",
		Name:      "publish_total",
		Help:      "Total number of notifications published",
	}, []string{LabelNotifier})

	// NotificationErrors counts the notifications failed per notifier.
	NotificationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "notifier",
		Name:      "publish_error_total",
		Help:      "Total number of notifications failed to publish",
	}, []string{LabelNotifier})
)
