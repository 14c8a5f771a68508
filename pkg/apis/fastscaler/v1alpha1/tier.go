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
	"strings"
)

// Tier is a named bracket of the load metric.
// The order of the values matters: a higher value means a more severe tier.
type Tier int

const (
	// TierNoop is the implicit tier for 0 <= avg < lowest threshold, no action is taken.
	TierNoop Tier = iota
	// TierShutdown is the terminal tier selected by the shutdown sentinel (avg < 0).
	TierShutdown
	TierBase
	TierLow
	TierMid
	TierHigh
)

var tierNames = map[Tier]string{
	TierNoop:     "noop",
	TierShutdown: "shutdown",
	TierBase:     "base",
	TierLow:      "low",
	TierMid:      "mid",
	TierHigh:     "high",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if _, ok := tierNames[t]; !ok {
		return nil, fmt.Errorf("unknown tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	x, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = x
	return nil
}

// ParseTier parses a tier from its name, case-insensitive.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range tierNames {
		if n == name {
			return t, nil
		}
	}
	return TierNoop, fmt.Errorf("unknown tier %q", s)
}

// TierSpec is one row of the tier table.
type TierSpec struct {
	Tier Tier `json:"tier"`
	// MinAvg is the inclusive lower bound of the load metric for this tier.
	MinAvg float64 `json:"minAvg"`
	// DesiredCount is the replica count requested for this tier.
	DesiredCount int `json:"desiredCount"`
	// Notify tells whether a notification is published when the tier is matched.
	Notify bool `json:"notify"`
	// Scale tells whether a scale command is issued when the tier is matched.
	// A scaling tier is followed by the long wait, others by the short wait.
	Scale bool `json:"scale"`
}

// Matched returns true for the tiers coming from the ladder, i.e. not noop nor shutdown.
func (ts TierSpec) Matched() bool {
	return ts.Tier != TierNoop && ts.Tier != TierShutdown
}

var (
	// NoopTierSpec is returned for loads below the lowest threshold.
	NoopTierSpec = TierSpec{Tier: TierNoop}
	// ShutdownTierSpec is returned for the shutdown sentinel.
	ShutdownTierSpec = TierSpec{Tier: TierShutdown}
)

// Ladder is the ordered tier table, most severe first.
type Ladder []TierSpec

// DefaultLadder returns the default tier table.
//
//	avg >= 500 -> high, 20 replicas, notify and scale
//	avg >= 300 -> mid, 15 replicas, notify
//	avg >= 100 -> low, 10 replicas, notify
//	avg >= 50  -> base, 2 replicas, notify
func DefaultLadder() Ladder {
	return Ladder{
		{Tier: TierHigh, MinAvg: 500, DesiredCount: 20, Notify: true, Scale: true},
		{Tier: TierMid, MinAvg: 300, DesiredCount: 15, Notify: true},
		{Tier: TierLow, MinAvg: 100, DesiredCount: 10, Notify: true},
		{Tier: TierBase, MinAvg: 50, DesiredCount: 2, Notify: true},
	}
}

// Validate checks the ladder is usable by the classifier.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("tier ladder is empty")
	}
	seen := make(map[Tier]bool, len(l))
	for i, ts := range l {
		if !ts.Matched() {
			return fmt.Errorf("tier %q can not be used in the ladder", ts.Tier)
		}
		if seen[ts.Tier] {
			return fmt.Errorf("duplicate tier %q in the ladder", ts.Tier)
		}
		seen[ts.Tier] = true
		if ts.MinAvg < 0 {
			return fmt.Errorf("minAvg of tier %q must be >= 0, got %v", ts.Tier, ts.MinAvg)
		}
		if ts.DesiredCount < 0 {
			return fmt.Errorf("desiredCount of tier %q must be >= 0, got %d", ts.Tier, ts.DesiredCount)
		}
		if i == 0 {
			continue
		}
		prev := l[i-1]
		if ts.MinAvg >= prev.MinAvg {
			return fmt.Errorf("tiers must be ordered by descending minAvg, %q (%v) follows %q (%v)", ts.Tier, ts.MinAvg, prev.Tier, prev.MinAvg)
		}
		if ts.DesiredCount > prev.DesiredCount {
			return fmt.Errorf("desiredCount must not decrease with load, %q (%d) > %q (%d)", ts.Tier, ts.DesiredCount, prev.Tier, prev.DesiredCount)
		}
	}
	return nil
}
