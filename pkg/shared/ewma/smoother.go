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

// Package ewma smooths the load signal observed by a workflow run.
package ewma

import "math"

// DefaultSpan is the number of samples the average roughly covers.
const DefaultSpan = 30.0

// Smoother keeps an exponentially weighted moving average of the observed load.
// Sentinel (negative) and non finite values are not part of the load and are ignored.
// It is not safe for concurrent use, a workflow run owns its smoother.
type Smoother struct {
	decay float64
	value float64
	init  bool
}

// NewSmoother returns a smoother whose decay factor is 2/(span+1).
func NewSmoother(span float64) *Smoother {
	if span <= 0 {
		span = DefaultSpan
	}
	return &Smoother{decay: 2.0 / (span + 1.0)}
}

// Observe adds a load value, it returns false if the value was ignored.
func (s *Smoother) Observe(avg float64) bool {
	if avg < 0 || math.IsNaN(avg) || math.IsInf(avg, 0) {
		return false
	}
	if !s.init {
		s.value = avg
		s.init = true
		return true
	}
	s.value += s.decay * (avg - s.value)
	return true
}

// Value returns the current average, and false if nothing was observed yet.
func (s *Smoother) Value() (float64, bool) {
	return s.value, s.init
}

func (s *Smoother) Reset() {
	s.value = 0
	s.init = false
}
