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

package supervisor

import (
	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/workflow"
)

type options struct {
	// number of finished runs kept for inspection.
	historySize int
	// options applied to every workflow runner.
	runnerOptions []workflow.Option
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		historySize: dfv1.DefaultFinishedRunsHistory,
	}
}

// WithHistorySize sets the number of finished runs kept for inspection.
func WithHistorySize(n int) Option {
	return func(o *options) {
		o.historySize = n
	}
}

// WithRunnerOptions sets the options applied to every workflow runner.
func WithRunnerOptions(opts ...workflow.Option) Option {
	return func(o *options) {
		o.runnerOptions = append(o.runnerOptions, opts...)
	}
}
