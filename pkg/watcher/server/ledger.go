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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	redisclient "github.com/numaproj/fastscaler/pkg/shared/clients/redis"
)

// Ledger remembers the last desired count applied to each deployment for a while, so that a
// retried scale request does not reach the backend again.
type Ledger interface {
	Get(ctx context.Context, handle string) (int, bool, error)
	Set(ctx context.Context, handle string, desired int) error
}

type lruLedger struct {
	cache *expirable.LRU[string, int]
}

// NewLRULedger returns an in-memory ledger keeping at most size deployments for ttl.
func NewLRULedger(size int, ttl time.Duration) Ledger {
	return &lruLedger{cache: expirable.NewLRU[string, int](size, nil, ttl)}
}

func (l *lruLedger) Get(_ context.Context, handle string) (int, bool, error) {
	v, ok := l.cache.Get(handle)
	return v, ok, nil
}

func (l *lruLedger) Set(_ context.Context, handle string, desired int) error {
	l.cache.Add(handle, desired)
	return nil
}

type redisLedger struct {
	client *redisclient.RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisLedger returns a ledger shared by all the watcher replicas.
func NewRedisLedger(client *redisclient.RedisClient, ttl time.Duration) Ledger {
	return &redisLedger{client: client, prefix: dfv1.DefaultLedgerKeyPrefix, ttl: ttl}
}

func (r *redisLedger) key(handle string) string {
	return r.prefix + handle
}

func (r *redisLedger) Get(ctx context.Context, handle string) (int, bool, error) {
	v, err := r.client.Client.Get(ctx, r.key(handle)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read ledger entry %q, %w", handle, err)
	}
	desired, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("corrupted ledger entry %q, %w", handle, err)
	}
	return desired, true, nil
}

func (r *redisLedger) Set(ctx context.Context, handle string, desired int) error {
	if err := r.client.Client.Set(ctx, r.key(handle), strconv.Itoa(desired), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write ledger entry %q, %w", handle, err)
	}
	return nil
}
