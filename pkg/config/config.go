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

package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/notify"
)

// GlobalConfig is the configuration of the fastscaler commands, populated from
// an optional yaml file and FASTSCALER_ prefixed environment variables.
// The file is watched, a reloaded configuration applies to the runs launched afterwards.
type GlobalConfig struct {
	conf *config
	lock *sync.RWMutex
}

type config struct {
	// Autoscaler is the default spec of the runs.
	Autoscaler dfv1.AutoscalerSpec `json:"autoscaler"`
	// Handles are the deployments a run is launched for when the controller starts.
	Handles       []string            `json:"handles"`
	Watcher       WatcherConfig       `json:"watcher"`
	Notifiers     notify.Config       `json:"notifiers"`
	APIServer     ServerConfig        `json:"apiServer"`
	Metrics       MetricsConfig       `json:"metrics"`
	WatcherServer WatcherServerConfig `json:"watcherServer"`
}

// WatcherConfig selects the transport to the watcher, exactly one of URL and NATS is set.
type WatcherConfig struct {
	// URL of the HTTP watcher endpoint.
	URL string `json:"url"`
	// InsecureSkipVerify accepts the self-signed certificate of the watcher server.
	InsecureSkipVerify bool        `json:"insecureSkipVerify"`
	NATS               *NATSConfig `json:"nats,omitempty"`
}

type NATSConfig struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

type ServerConfig struct {
	Port     int  `json:"port"`
	Insecure bool `json:"insecure"`
}

type MetricsConfig struct {
	Port int `json:"port"`
}

type WatcherServerConfig struct {
	Port     int  `json:"port"`
	Insecure bool `json:"insecure"`
	// DisableScaleIn ignores the requests lowering the desired count, defaults to true.
	DisableScaleIn *bool `json:"disableScaleIn,omitempty"`
	// InitialTaskNumber is the desired count of the deployments registered in the static backend.
	InitialTaskNumber int         `json:"initialTaskNumber"`
	NATS              *NATSConfig `json:"nats,omitempty"`
	// Redis stores the scale ledger in redis, configured by the FASTSCALER_REDIS_ environment variables.
	Redis            bool    `json:"redis"`
	LedgerSize       int     `json:"ledgerSize"`
	LedgerTTLSeconds *uint32 `json:"ledgerTTLSeconds,omitempty"`
}

func (w WatcherServerConfig) GetDisableScaleIn() bool {
	if w.DisableScaleIn != nil {
		return *w.DisableScaleIn
	}
	return true
}

func (g *GlobalConfig) GetAutoscalerSpec() dfv1.AutoscalerSpec {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.conf.Autoscaler
}

func (g *GlobalConfig) GetHandles() []string {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return append([]string(nil), g.conf.Handles...)
}

func (g *GlobalConfig) GetWatcherConfig() WatcherConfig {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.conf.Watcher
}

func (g *GlobalConfig) GetNotifiersConfig() notify.Config {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.conf.Notifiers
}

func (g *GlobalConfig) GetAPIServerConfig() ServerConfig {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.conf.APIServer
}

func (g *GlobalConfig) GetMetricsConfig() MetricsConfig {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.conf.Metrics
}

func (g *GlobalConfig) GetWatcherServerConfig() WatcherServerConfig {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.conf.WatcherServer
}

func (c *config) validate() error {
	if err := c.Autoscaler.Validate(); err != nil {
		return fmt.Errorf("invalid autoscaler config, %w", err)
	}
	if c.Watcher.URL != "" && c.Watcher.NATS != nil {
		return fmt.Errorf("only one of watcher.url and watcher.nats can be set")
	}
	if x := c.Watcher.NATS; x != nil && x.URL == "" {
		return fmt.Errorf("watcher.nats.url is required")
	}
	if err := c.Notifiers.Validate(); err != nil {
		return fmt.Errorf("invalid notifiers config, %w", err)
	}
	seen := make(map[string]bool)
	for _, h := range c.Handles {
		if h == "" {
			return fmt.Errorf("empty deployment handle")
		}
		if seen[h] {
			return fmt.Errorf("duplicate deployment handle %q", h)
		}
		seen[h] = true
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(dfv1.Project)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("apiServer.port", dfv1.DefaultAPIServerPort)
	v.SetDefault("metrics.port", dfv1.DefaultMetricsPort)
	v.SetDefault("watcherServer.port", dfv1.DefaultWatcherPort)
	v.SetDefault("watcherServer.initialTaskNumber", dfv1.DefaultInitialTaskNumber)
	v.SetDefault("watcherServer.ledgerSize", 1000)
	v.SetDefault("watcher.url", "")
	_ = v.BindEnv("watcherServer.disableScaleIn", dfv1.EnvDisableScaleIn)
	_ = v.BindEnv("watcherServer.nats.url", dfv1.EnvNATSURL)
	return v
}

func unmarshal(v *viper.Viper) (*config, error) {
	conf := &config{}
	err := v.Unmarshal(conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)), func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	})
	if err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration. %w", err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadConfig loads the configuration. An empty file name loads the defaults and the
// environment variables only. onErrorReloading is called when a changed file is invalid,
// the previous configuration is kept.
func LoadConfig(file string, onErrorReloading func(error)) (*GlobalConfig, error) {
	v := newViper()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load configuration file. %w", err)
		}
	}
	conf, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	r := &GlobalConfig{
		conf: conf,
		lock: new(sync.RWMutex),
	}
	if file != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			cf, err := unmarshal(v)
			if err != nil {
				onErrorReloading(err)
				return
			}
			r.lock.Lock()
			defer r.lock.Unlock()
			r.conf = cf
		})
		v.WatchConfig()
	}
	return r, nil
}
