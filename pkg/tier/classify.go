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

// Package tier maps a load signal to a scaling tier.
package tier

import (
	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

// Classify returns the tier of the given load.
//
// A negative load is the shutdown sentinel. Otherwise the ladder is checked from the
// most severe tier down, the first tier whose inclusive lower bound is satisfied wins.
// A load below every threshold, NaN included, maps to the noop tier.
func Classify(ladder dfv1.Ladder, avg float64) dfv1.TierSpec {
	if avg < 0 {
		return dfv1.ShutdownTierSpec
	}
	for _, ts := range ladder {
		if avg >= ts.MinAvg {
			return ts
		}
	}
	return dfv1.NoopTierSpec
}
