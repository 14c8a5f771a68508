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
	"time"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

// Phase is the state of a workflow run.
type Phase string

const (
	PhasePolling     Phase = "Polling"
	PhaseClassifying Phase = "Classifying"
	PhaseNotifying   Phase = "Notifying"
	PhaseScaling     Phase = "Scaling"
	PhaseWaiting     Phase = "Waiting"
	// PhaseDone is terminal, reached by the shutdown sentinel.
	PhaseDone Phase = "Done"
	// PhaseTimedOut is terminal, reached when the maximum lifetime is exhausted.
	PhaseTimedOut Phase = "TimedOut"
)

// IsTerminal returns true if no transition leaves the phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseTimedOut
}

// State is owned by a single workflow run.
type State struct {
	Phase Phase `json:"phase"`
	// Sample is the last successfully probed sample.
	Sample dfv1.MetricSample `json:"sample"`
	// Matched is the tier of the last classified sample.
	Matched dfv1.TierSpec `json:"matched"`
	// LastTier is the tier classified by the previous poll cycle.
	LastTier dfv1.Tier `json:"lastTier"`
	// Elapsed is the sum of the completed waits.
	Elapsed time.Duration `json:"elapsed"`
	// Wait is the interval selected for the current Waiting phase.
	Wait time.Duration `json:"wait"`
	// Polls is the number of probes issued.
	Polls int `json:"polls"`
}

// InitialState is the entry state of every run.
func InitialState() State {
	return State{Phase: PhasePolling, LastTier: dfv1.TierNoop}
}

type EventType int

const (
	// EventStep advances a phase which does not wait for any external result.
	EventStep EventType = iota
	EventProbeOK
	EventProbeFailed
	EventNotifyDone
	EventScaleDone
	EventWaitDone
)

var eventNames = map[EventType]string{
	EventStep:        "Step",
	EventProbeOK:     "ProbeOK",
	EventProbeFailed: "ProbeFailed",
	EventNotifyDone:  "NotifyDone",
	EventScaleDone:   "ScaleDone",
	EventWaitDone:    "WaitDone",
}

func (e EventType) String() string {
	return eventNames[e]
}

// Event is the input of a transition.
type Event struct {
	Type EventType
	// Since is the wall-clock time since the run started, set on EventStep.
	Since time.Duration
	// Sample is set on EventProbeOK.
	Sample dfv1.MetricSample
	// Err is the failure of the call which produced the event, if any.
	Err error
}

type EffectKind int

const (
	EffectProbe EffectKind = iota
	EffectNotify
	EffectScale
	EffectWait
	EffectFinish
)

// Effect is an action requested by a transition, executed by the runner.
type Effect struct {
	Kind EffectKind
	// Wait is set on EffectWait.
	Wait time.Duration
	// Command is set on EffectScale.
	Command dfv1.ScaleCommand
	// Result is set on EffectFinish.
	Result Result
}

// Result is the outcome of a finished run.
type Result string

const (
	// ResultDone means the shutdown sentinel was observed.
	ResultDone Result = "Done"
	// ResultTimedOut means the maximum lifetime was reached.
	ResultTimedOut Result = "TimedOut"
	// ResultCancelled means the run was stopped at a waiting boundary.
	ResultCancelled Result = "Cancelled"
)
