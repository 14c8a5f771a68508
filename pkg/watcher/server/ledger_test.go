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

package server

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	redisclient "github.com/numaproj/fastscaler/pkg/shared/clients/redis"
)

func TestLRULedger(t *testing.T) {
	ctx := context.Background()
	l := NewLRULedger(1, 50*time.Millisecond)
	_, found, err := l.Get(ctx, "svc-a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, l.Set(ctx, "svc-a", 20))
	v, found, _ := l.Get(ctx, "svc-a")
	assert.True(t, found)
	assert.Equal(t, 20, v)

	// evicted by size
	require.NoError(t, l.Set(ctx, "svc-b", 10))
	_, found, _ = l.Get(ctx, "svc-a")
	assert.False(t, found)

	// expired
	assert.Eventually(t, func() bool {
		_, found, _ := l.Get(ctx, "svc-b")
		return !found
	}, time.Second, 10*time.Millisecond)
}

func TestRedisLedger(t *testing.T) {
	if os.Getenv(dfv1.EnvRedisURL) == "" {
		t.Skipf("%s not set", dfv1.EnvRedisURL)
	}
	ctx := context.Background()
	client := redisclient.NewRedisClientFromEnv()
	defer func() { _ = client.Close() }()
	l := NewRedisLedger(client, time.Minute)
	handle := "ledger-test-" + time.Now().Format("150405.000")
	_, found, err := l.Get(ctx, handle)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, l.Set(ctx, handle, 15))
	v, found, err := l.Get(ctx, handle)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 15, v)
}
