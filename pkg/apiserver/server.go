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

package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/numaproj/fastscaler"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
	sharedtls "github.com/numaproj/fastscaler/pkg/shared/tls"
	"github.com/numaproj/fastscaler/pkg/supervisor"
)

type ServerOptions struct {
	Insecure bool
	Port     int
}

// Server is the status and control API of the workflow runs.
type Server struct {
	options     ServerOptions
	supervisor  *supervisor.Supervisor
	defaultSpec SpecProvider
}

func NewServer(s *supervisor.Supervisor, defaultSpec SpecProvider, opts ServerOptions) *Server {
	return &Server{
		options:     opts,
		supervisor:  s,
		defaultSpec: defaultSpec,
	}
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/livez"}}), gin.Recovery())
	// deployment handles may carry escaped slashes
	router.UseRawPath = true
	Routes(router, s.supervisor, s.defaultSpec)
	return router
}

// Start serves the API until the context is done.
func (s *Server) Start(ctx context.Context) error {
	log := logging.FromContext(ctx).Named("api-server")
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.options.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if s.options.Insecure {
			log.Infow("Starting API server (TLS disabled) on "+httpServer.Addr, "version", fastscaler.GetVersion())
			errCh <- httpServer.ListenAndServe()
			return
		}
		tlsConfig, err := sharedtls.ServerConfig()
		if err != nil {
			errCh <- err
			return
		}
		httpServer.TLSConfig = tlsConfig
		log.Infow("Starting API server on "+httpServer.Addr, "version", fastscaler.GetVersion())
		errCh <- httpServer.ListenAndServeTLS("", "")
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed, %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
