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

package redis

import (
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
)

// RedisClient datatype to hold redis client attributes.
type RedisClient struct {
	Client redis.UniversalClient
}

// NewRedisClient returns a new Redis Client.
func NewRedisClient(options *redis.UniversalOptions) *RedisClient {
	client := new(RedisClient)
	client.Client = redis.NewUniversalClient(options)
	return client
}

// NewRedisClientFromEnv returns a new Redis Client built from the environment variables,
// FASTSCALER_REDIS_URL is a comma separated list of addresses.
func NewRedisClientFromEnv() *RedisClient {
	return NewRedisClient(OptionsFromEnv())
}

// OptionsFromEnv returns the redis options read from the environment variables.
func OptionsFromEnv() *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Password: os.Getenv(dfv1.EnvRedisPassword),
	}
	if urls := os.Getenv(dfv1.EnvRedisURL); urls != "" {
		opts.Addrs = strings.Split(urls, ",")
	}
	return opts
}

// Close closes the underlying client.
func (cl *RedisClient) Close() error {
	return cl.Client.Close()
}
