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

package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaproj/fastscaler"
	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/config"
	"github.com/numaproj/fastscaler/pkg/metrics"
	natsclient "github.com/numaproj/fastscaler/pkg/shared/clients/nats"
	redisclient "github.com/numaproj/fastscaler/pkg/shared/clients/redis"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
	sharedutil "github.com/numaproj/fastscaler/pkg/shared/util"
	"github.com/numaproj/fastscaler/pkg/watcher/server"
)

func NewWatcherCommand() *cobra.Command {
	var (
		configFile string
		loads      map[string]string
	)

	command := &cobra.Command{
		Use:   "watcher",
		Short: "Start a watcher serving static loads",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger().Named("watcher")
			version := fastscaler.GetVersion()
			log.Infow("Starting fastscaler watcher", "version", version)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, log)

			conf, err := config.LoadConfig(configFile, func(err error) {
				log.Errorw("Failed to reload configuration", zap.Error(err))
			})
			if err != nil {
				return err
			}
			wsConf := conf.GetWatcherServerConfig()

			backend := server.NewStaticBackend(wsConf.InitialTaskNumber)
			for _, handle := range conf.GetHandles() {
				backend.SetLoad(handle, 0)
			}
			for handle, v := range loads {
				avg, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("invalid load %q of %q, %w", v, handle, err)
				}
				backend.SetLoad(handle, avg)
			}

			ttl := server.DefaultLedgerTTL
			if wsConf.LedgerTTLSeconds != nil {
				ttl = time.Duration(*wsConf.LedgerTTLSeconds) * time.Second
			}
			var ledger server.Ledger
			var metricsOpts []metrics.Option
			if wsConf.Redis {
				client := redisclient.NewRedisClientFromEnv()
				defer func() { _ = client.Close() }()
				ledger = server.NewRedisLedger(client, ttl)
				metricsOpts = append(metricsOpts, metrics.WithHealthChecker(metrics.HealthCheckFunc(func(ctx context.Context) error {
					return client.Client.Ping(ctx).Err()
				})))
			} else {
				ledger = server.NewLRULedger(wsConf.LedgerSize, ttl)
			}
			svc := server.NewService(backend, ledger, wsConf.GetDisableScaleIn())

			opts := []server.Option{server.WithPort(wsConf.Port), server.WithInsecure(wsConf.Insecure)}
			if x := wsConf.NATS; x != nil && x.URL != "" {
				conn, err := natsclient.NewConn(ctx, x.URL)
				if err != nil {
					return err
				}
				defer conn.Close()
				opts = append(opts, server.WithNATS(conn, x.Subject))
				metricsOpts = append(metricsOpts, metrics.WithHealthChecker(metrics.HealthCheckFunc(natsclient.HealthCheck(conn))))
			}

			metrics.BuildInfo.WithLabelValues(dfv1.ComponentWatcher, version.Version, version.Platform).Set(1)
			shutdownMetrics, err := metrics.NewMetricsServer(append(metricsOpts, metrics.WithPort(conf.GetMetricsConfig().Port))...).Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start the metrics server, %w", err)
			}
			defer func() { _ = shutdownMetrics(context.WithoutCancel(ctx)) }()
			log.Infow("Watcher configured", zap.Bool("disableScaleIn", wsConf.GetDisableScaleIn()), zap.Bool("redisLedger", wsConf.Redis), zap.Duration("ledgerTTL", ttl))
			return server.NewServer(svc, opts...).Start(ctx)
		},
	}
	command.Flags().StringVar(&configFile, "config", sharedutil.LookupEnvStringOr(dfv1.EnvConfigFile, ""), "Path of the configuration file, defaults to $FASTSCALER_CONFIG.")
	command.Flags().StringToStringVar(&loads, "load", nil, "Static loads of the deployments, e.g. --load app=120,api=0.")
	return command
}
