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

package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	l := zap.NewNop().Sugar()
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestNewLoggerDebug(t *testing.T) {
	t.Setenv("FASTSCALER_DEBUG", "true")
	l := NewLogger()
	assert.True(t, l.Desugar().Core().Enabled(zap.DebugLevel))
	t.Setenv("FASTSCALER_DEBUG", "false")
	l = NewLogger()
	assert.False(t, l.Desugar().Core().Enabled(zap.DebugLevel))
}
