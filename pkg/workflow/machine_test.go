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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

func classified(t *testing.T, m *Machine, s State, avg float64) (State, []Effect) {
	t.Helper()
	s, effects, err := m.Transition(s, Event{Type: EventStep})
	require.NoError(t, err)
	require.Equal(t, []Effect{{Kind: EffectProbe}}, effects)
	s, effects, err = m.Transition(s, Event{Type: EventProbeOK, Sample: dfv1.MetricSample{Avg: avg}})
	require.NoError(t, err)
	require.Empty(t, effects)
	require.Equal(t, PhaseClassifying, s.Phase)
	s, effects, err = m.Transition(s, Event{Type: EventStep})
	require.NoError(t, err)
	return s, effects
}

func TestMachine_Polling(t *testing.T) {
	m := NewMachine(dfv1.AutoscalerSpec{})

	t.Run("probe", func(t *testing.T) {
		s, effects, err := m.Transition(InitialState(), Event{Type: EventStep})
		require.NoError(t, err)
		assert.Equal(t, PhasePolling, s.Phase)
		assert.Equal(t, 1, s.Polls)
		assert.Equal(t, []Effect{{Kind: EffectProbe}}, effects)
	})

	t.Run("lifetime reached by elapsed", func(t *testing.T) {
		s := InitialState()
		s.Elapsed = 24 * time.Hour
		s, effects, err := m.Transition(s, Event{Type: EventStep})
		require.NoError(t, err)
		assert.Equal(t, PhaseTimedOut, s.Phase)
		assert.Equal(t, 0, s.Polls)
		assert.Equal(t, []Effect{{Kind: EffectFinish, Result: ResultTimedOut}}, effects)
	})

	t.Run("lifetime reached by wall clock", func(t *testing.T) {
		s, effects, err := m.Transition(InitialState(), Event{Type: EventStep, Since: 24*time.Hour + time.Second})
		require.NoError(t, err)
		assert.Equal(t, PhaseTimedOut, s.Phase)
		assert.Equal(t, ResultTimedOut, effects[0].Result)
	})

	t.Run("probe failed", func(t *testing.T) {
		s, _, _ := m.Transition(InitialState(), Event{Type: EventStep})
		s, effects, err := m.Transition(s, Event{Type: EventProbeFailed, Err: errors.New("timeout")})
		require.NoError(t, err)
		assert.Equal(t, PhaseWaiting, s.Phase)
		assert.Equal(t, 3*time.Second, s.Wait)
		assert.Equal(t, dfv1.TierNoop, s.LastTier)
		assert.Equal(t, []Effect{{Kind: EffectWait, Wait: 3 * time.Second}}, effects)
	})

	t.Run("malformed sample", func(t *testing.T) {
		s, _, _ := m.Transition(InitialState(), Event{Type: EventStep})
		s, effects, err := m.Transition(s, Event{Type: EventProbeOK, Sample: dfv1.MetricSample{Avg: math.NaN()}})
		require.NoError(t, err)
		assert.Equal(t, PhaseWaiting, s.Phase)
		assert.Equal(t, EffectWait, effects[0].Kind)
	})

	t.Run("negative infinity", func(t *testing.T) {
		s, _, _ := m.Transition(InitialState(), Event{Type: EventStep})
		s, _, err := m.Transition(s, Event{Type: EventProbeOK, Sample: dfv1.MetricSample{Avg: math.Inf(-1)}})
		require.NoError(t, err)
		assert.Equal(t, PhaseClassifying, s.Phase)
		s, effects, err := m.Transition(s, Event{Type: EventStep})
		require.NoError(t, err)
		assert.Equal(t, PhaseDone, s.Phase)
		assert.Equal(t, []Effect{{Kind: EffectFinish, Result: ResultDone}}, effects)
	})
}

func TestMachine_Classifying(t *testing.T) {
	m := NewMachine(dfv1.AutoscalerSpec{})

	t.Run("noop", func(t *testing.T) {
		s, effects := classified(t, m, InitialState(), 49.999)
		assert.Equal(t, PhaseWaiting, s.Phase)
		assert.Equal(t, dfv1.TierNoop, s.LastTier)
		assert.Equal(t, []Effect{{Kind: EffectWait, Wait: 3 * time.Second}}, effects)
	})

	t.Run("shutdown", func(t *testing.T) {
		s, effects := classified(t, m, InitialState(), -1)
		assert.Equal(t, PhaseDone, s.Phase)
		assert.True(t, s.Phase.IsTerminal())
		assert.Equal(t, []Effect{{Kind: EffectFinish, Result: ResultDone}}, effects)
	})

	for _, tc := range []struct {
		avg  float64
		tier dfv1.Tier
	}{
		{50, dfv1.TierBase},
		{100, dfv1.TierLow},
		{300, dfv1.TierMid},
	} {
		t.Run(tc.tier.String(), func(t *testing.T) {
			s, effects := classified(t, m, InitialState(), tc.avg)
			assert.Equal(t, PhaseNotifying, s.Phase)
			assert.Equal(t, tc.tier, s.Matched.Tier)
			assert.Equal(t, []Effect{{Kind: EffectNotify}}, effects)
			s, effects, err := m.Transition(s, Event{Type: EventNotifyDone})
			require.NoError(t, err)
			assert.Equal(t, PhaseWaiting, s.Phase)
			assert.Equal(t, []Effect{{Kind: EffectWait, Wait: 3 * time.Second}}, effects)
		})
	}

	t.Run("high", func(t *testing.T) {
		s, effects := classified(t, m, InitialState(), 500)
		assert.Equal(t, PhaseNotifying, s.Phase)
		assert.Equal(t, []Effect{{Kind: EffectNotify}}, effects)
		s, effects, err := m.Transition(s, Event{Type: EventNotifyDone, Err: errors.New("publish failed")})
		require.NoError(t, err)
		assert.Equal(t, PhaseScaling, s.Phase)
		assert.Equal(t, []Effect{{Kind: EffectScale, Command: dfv1.ScaleCommand{DesiredCount: 20}}}, effects)
		s, effects, err = m.Transition(s, Event{Type: EventScaleDone, Err: errors.New("scale failed")})
		require.NoError(t, err)
		assert.Equal(t, PhaseWaiting, s.Phase)
		assert.Equal(t, []Effect{{Kind: EffectWait, Wait: 60 * time.Second}}, effects)
		s, effects, err = m.Transition(s, Event{Type: EventWaitDone})
		require.NoError(t, err)
		assert.Equal(t, PhasePolling, s.Phase)
		assert.Equal(t, 60*time.Second, s.Elapsed)
		assert.Empty(t, effects)
	})
}

func TestMachine_SkipUnchangedNotify(t *testing.T) {
	m := NewMachine(dfv1.AutoscalerSpec{SkipUnchangedNotify: ptr.To(true)})
	s, effects := classified(t, m, InitialState(), 60)
	assert.Equal(t, []Effect{{Kind: EffectNotify}}, effects)
	s, _, _ = m.Transition(s, Event{Type: EventNotifyDone})
	s, _, _ = m.Transition(s, Event{Type: EventWaitDone})

	s, effects = classified(t, m, s, 70)
	assert.Equal(t, PhaseWaiting, s.Phase)
	assert.Equal(t, []Effect{{Kind: EffectWait, Wait: 3 * time.Second}}, effects)
	s, _, _ = m.Transition(s, Event{Type: EventWaitDone})

	// The scale command is still issued for an unchanged high tier.
	s, effects = classified(t, m, s, 600)
	assert.Equal(t, EffectNotify, effects[0].Kind)
	s, _, _ = m.Transition(s, Event{Type: EventNotifyDone})
	s, _, _ = m.Transition(s, Event{Type: EventScaleDone})
	s, _, _ = m.Transition(s, Event{Type: EventWaitDone})
	s, effects = classified(t, m, s, 600)
	assert.Equal(t, PhaseScaling, s.Phase)
	assert.Equal(t, EffectScale, effects[0].Kind)
}

func TestMachine_CustomWaits(t *testing.T) {
	m := NewMachine(dfv1.AutoscalerSpec{ShortWaitSeconds: ptr.To[uint32](5), LongWaitSeconds: ptr.To[uint32](120)})
	s, effects := classified(t, m, InitialState(), 10)
	assert.Equal(t, 5*time.Second, effects[0].Wait)
	s, _, _ = m.Transition(s, Event{Type: EventWaitDone})
	s, _ = classified(t, m, s, 1000)
	s, _, _ = m.Transition(s, Event{Type: EventNotifyDone})
	_, effects, _ = m.Transition(s, Event{Type: EventScaleDone})
	assert.Equal(t, 120*time.Second, effects[0].Wait)
}

func TestMachine_InvalidTransitions(t *testing.T) {
	m := NewMachine(dfv1.AutoscalerSpec{})
	for _, tc := range []struct {
		phase Phase
		event EventType
	}{
		{PhasePolling, EventWaitDone},
		{PhaseClassifying, EventProbeOK},
		{PhaseNotifying, EventStep},
		{PhaseScaling, EventNotifyDone},
		{PhaseWaiting, EventStep},
		{PhaseDone, EventStep},
		{PhaseTimedOut, EventStep},
	} {
		s := State{Phase: tc.phase}
		next, effects, err := m.Transition(s, Event{Type: tc.event})
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s/%s", tc.phase, tc.event)
		assert.Equal(t, s, next)
		assert.Empty(t, effects)
	}
}
