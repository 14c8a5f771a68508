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
	"errors"
	"fmt"
	"time"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/tier"
)

// ErrInvalidTransition is returned when an event is not accepted in the current phase.
var ErrInvalidTransition = errors.New("invalid transition")

// Machine holds the configuration of the decision workflow. Transition is pure, the
// machine is safe to share between runs.
type Machine struct {
	ladder              dfv1.Ladder
	shortWait           time.Duration
	longWait            time.Duration
	maxLifetime         time.Duration
	skipUnchangedNotify bool
}

// NewMachine returns a machine configured by the spec.
func NewMachine(spec dfv1.AutoscalerSpec) *Machine {
	return &Machine{
		ladder:              spec.GetLadder(),
		shortWait:           spec.GetShortWait(),
		longWait:            spec.GetLongWait(),
		maxLifetime:         spec.GetMaxLifetime(),
		skipUnchangedNotify: spec.GetSkipUnchangedNotify(),
	}
}

// Transition returns the next state and the effects the runner has to execute.
// An empty effect list means the runner feeds EventStep to the next state.
func (m *Machine) Transition(s State, ev Event) (State, []Effect, error) {
	invalid := func() (State, []Effect, error) {
		return s, nil, fmt.Errorf("%w: event %s in phase %s", ErrInvalidTransition, ev.Type, s.Phase)
	}
	switch s.Phase {
	case PhasePolling:
		switch ev.Type {
		case EventStep:
			// The lifetime check comes before the probe.
			if s.Elapsed >= m.maxLifetime || ev.Since >= m.maxLifetime {
				s.Phase = PhaseTimedOut
				return s, []Effect{{Kind: EffectFinish, Result: ResultTimedOut}}, nil
			}
			s.Polls++
			return s, []Effect{{Kind: EffectProbe}}, nil
		case EventProbeOK:
			if !ev.Sample.IsValid() {
				return m.wait(s, m.shortWait)
			}
			s.Sample = ev.Sample
			s.Phase = PhaseClassifying
			return s, nil, nil
		case EventProbeFailed:
			return m.wait(s, m.shortWait)
		}
	case PhaseClassifying:
		if ev.Type != EventStep {
			return invalid()
		}
		matched := tier.Classify(m.ladder, s.Sample.Avg)
		previous := s.LastTier
		s.Matched = matched
		s.LastTier = matched.Tier
		switch {
		case matched.Tier == dfv1.TierShutdown:
			s.Phase = PhaseDone
			return s, []Effect{{Kind: EffectFinish, Result: ResultDone}}, nil
		case matched.Notify && !(m.skipUnchangedNotify && previous == matched.Tier):
			s.Phase = PhaseNotifying
			return s, []Effect{{Kind: EffectNotify}}, nil
		}
		return m.afterNotify(s)
	case PhaseNotifying:
		if ev.Type != EventNotifyDone {
			return invalid()
		}
		return m.afterNotify(s)
	case PhaseScaling:
		if ev.Type != EventScaleDone {
			return invalid()
		}
		return m.wait(s, m.longWait)
	case PhaseWaiting:
		if ev.Type != EventWaitDone {
			return invalid()
		}
		s.Elapsed += s.Wait
		s.Wait = 0
		s.Phase = PhasePolling
		return s, nil, nil
	}
	return invalid()
}

func (m *Machine) afterNotify(s State) (State, []Effect, error) {
	if s.Matched.Scale {
		s.Phase = PhaseScaling
		return s, []Effect{{Kind: EffectScale, Command: dfv1.ScaleCommand{DesiredCount: s.Matched.DesiredCount}}}, nil
	}
	return m.wait(s, m.shortWait)
}

func (m *Machine) wait(s State, d time.Duration) (State, []Effect, error) {
	s.Phase = PhaseWaiting
	s.Wait = d
	return s, []Effect{{Kind: EffectWait, Wait: d}}, nil
}
