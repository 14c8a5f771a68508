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
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/numaproj/fastscaler/pkg/shared/logging"
	sharedtls "github.com/numaproj/fastscaler/pkg/shared/tls"
)

// Server serves a watcher service over HTTP, and over NATS when configured.
type Server struct {
	service *Service
	options *options
}

func NewServer(svc *Service, opts ...Option) *Server {
	serverOpts := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(serverOpts)
		}
	}
	return &Server{service: svc, options: serverOpts}
}

// Handler returns the HTTP handler of the watcher.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/livez"}}), gin.Recovery())
	Routes(router, s.service)
	return router
}

// Start serves the requests until the context is done.
func (s *Server) Start(ctx context.Context) error {
	log := logging.FromContext(ctx).Named("watcher-server")
	ctx = logging.WithLogger(ctx, log)
	if conn := s.options.natsConn; conn != nil {
		sub, err := SubscribeNATS(ctx, conn, s.options.subject, s.service)
		if err != nil {
			return err
		}
		defer func() { _ = sub.Drain() }()
		log.Infow("Serving watcher requests on NATS", zap.String("subject", s.options.subject))
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.options.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.options.insecure {
			log.Infow("Starting watcher server (TLS disabled) on " + server.Addr)
			err = server.ListenAndServe()
		} else {
			var tlsConfig *tls.Config
			if tlsConfig, err = sharedtls.ServerConfig(); err == nil {
				server.TLSConfig = tlsConfig
				log.Infow("Starting watcher server on " + server.Addr)
				err = server.ListenAndServeTLS("", "")
			}
		}
		errCh <- err
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("watcher server failed, %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down watcher server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
