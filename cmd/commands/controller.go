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
	"crypto/tls"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/fastscaler"
	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/apiserver"
	"github.com/numaproj/fastscaler/pkg/config"
	"github.com/numaproj/fastscaler/pkg/metrics"
	"github.com/numaproj/fastscaler/pkg/notify"
	natsclient "github.com/numaproj/fastscaler/pkg/shared/clients/nats"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
	sharedutil "github.com/numaproj/fastscaler/pkg/shared/util"
	"github.com/numaproj/fastscaler/pkg/supervisor"
	"github.com/numaproj/fastscaler/pkg/watcher"
)

func NewControllerCommand() *cobra.Command {
	var (
		configFile      string
		shutdownTimeout time.Duration
	)

	command := &cobra.Command{
		Use:   "controller",
		Short: "Start the autoscaling workflow controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger().Named("controller")
			version := fastscaler.GetVersion()
			log.Infow("Starting fastscaler controller", "version", version)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, log)

			conf, err := config.LoadConfig(configFile, func(err error) {
				log.Errorw("Failed to reload configuration", zap.Error(err))
			})
			if err != nil {
				return err
			}
			w, healthCheckers, err := buildWatcher(ctx, conf.GetWatcherConfig())
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()
			n, err := notify.New(ctx, conf.GetNotifiersConfig())
			if err != nil {
				return err
			}
			defer func() { _ = n.Close() }()

			s, err := supervisor.NewSupervisor(w, n)
			if err != nil {
				return err
			}
			for _, handle := range conf.GetHandles() {
				status, err := s.Launch(ctx, handle, conf.GetAutoscalerSpec())
				if err != nil {
					return fmt.Errorf("failed to launch the run of %q, %w", handle, err)
				}
				log.Infow("Launched workflow run", zap.String("handle", handle), zap.String("id", status.ID))
			}

			metrics.BuildInfo.WithLabelValues(dfv1.ComponentController, version.Version, version.Platform).Set(1)
			metricsOpts := []metrics.Option{metrics.WithPort(conf.GetMetricsConfig().Port)}
			for _, hc := range healthCheckers {
				metricsOpts = append(metricsOpts, metrics.WithHealthChecker(hc))
			}
			shutdownMetrics, err := metrics.NewMetricsServer(metricsOpts...).Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start the metrics server, %w", err)
			}

			apiConf := conf.GetAPIServerConfig()
			api := apiserver.NewServer(s, conf.GetAutoscalerSpec, apiserver.ServerOptions{
				Insecure: apiConf.Insecure,
				Port:     apiConf.Port,
			})
			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return api.Start(egCtx)
			})
			eg.Go(func() error {
				<-egCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(egCtx), shutdownTimeout)
				defer cancel()
				return multierr.Combine(s.Shutdown(shutdownCtx), shutdownMetrics(shutdownCtx))
			})
			err = eg.Wait()
			log.Infow("Controller exited", zap.Any("stats", s.Stats()))
			return err
		},
	}
	command.Flags().StringVar(&configFile, "config", sharedutil.LookupEnvStringOr(dfv1.EnvConfigFile, ""), "Path of the configuration file, defaults to $FASTSCALER_CONFIG.")
	command.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", sharedutil.LookupEnvDurationOr(dfv1.EnvShutdownTimeout, 2*time.Minute), "Time to wait for the in-flight calls of the runs when stopping, defaults to $FASTSCALER_SHUTDOWN_TIMEOUT or 2m.")
	return command
}

// buildWatcher connects to the watcher configured, NATS when set, HTTP otherwise.
func buildWatcher(ctx context.Context, c config.WatcherConfig) (watcher.Watcher, []metrics.HealthChecker, error) {
	if c.NATS != nil {
		conn, err := natsclient.NewConn(ctx, c.NATS.URL)
		if err != nil {
			return nil, nil, err
		}
		return watcher.NewNATSWatcher(conn, c.NATS.Subject), []metrics.HealthChecker{metrics.HealthCheckFunc(natsclient.HealthCheck(conn))}, nil
	}
	if c.URL == "" {
		return nil, nil, fmt.Errorf("no watcher configured")
	}
	client := &http.Client{}
	if c.InsecureSkipVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return watcher.NewHTTPWatcher(c.URL, client), nil, nil
}
