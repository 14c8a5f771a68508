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

	"go.uber.org/zap"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
	"github.com/numaproj/fastscaler/pkg/shared/logging"
)

// errBadRequest marks a request which can never succeed.
var errBadRequest = errors.New("bad request")

// Service implements the watcher contract on top of a backend.
type Service struct {
	backend        Backend
	ledger         Ledger
	disableScaleIn bool
}

// NewService returns a watcher service. When disableScaleIn is set, a scale request lower than
// the current desired count is acknowledged but not applied.
func NewService(backend Backend, ledger Ledger, disableScaleIn bool) *Service {
	return &Service{backend: backend, ledger: ledger, disableScaleIn: disableScaleIn}
}

// Handle serves one request. The returned error is only used to select the transport status,
// the response always carries the error message.
func (s *Service) Handle(ctx context.Context, req dfv1.WatcherRequest) (dfv1.WatcherResponse, error) {
	var (
		resp dfv1.WatcherResponse
		err  error
	)
	switch req.Action {
	case dfv1.WatcherActionProbe:
		resp, err = s.probe(ctx, req)
	case dfv1.WatcherActionScale:
		resp, err = s.scale(ctx, req)
	default:
		err = fmt.Errorf("%w: unknown action %q", errBadRequest, req.Action)
	}
	if err != nil {
		return errorResponse(err), err
	}
	return resp, nil
}

func errorResponse(err error) dfv1.WatcherResponse {
	return dfv1.WatcherResponse{Status: dfv1.WatcherStatusError, Error: err.Error()}
}

func (s *Service) probe(ctx context.Context, req dfv1.WatcherRequest) (dfv1.WatcherResponse, error) {
	if req.Handle == "" {
		return dfv1.WatcherResponse{}, fmt.Errorf("%w: empty handle", errBadRequest)
	}
	sample, err := s.backend.Load(ctx, req.Handle)
	if err != nil {
		return dfv1.WatcherResponse{}, err
	}
	avg := sample.Avg
	return dfv1.WatcherResponse{Avg: &avg, Raw: sample.Raw, Status: dfv1.WatcherStatusOK}, nil
}

func (s *Service) scale(ctx context.Context, req dfv1.WatcherRequest) (dfv1.WatcherResponse, error) {
	log := logging.FromContext(ctx).With(zap.String("handle", req.Handle))
	if req.Handle == "" {
		return dfv1.WatcherResponse{}, fmt.Errorf("%w: empty handle", errBadRequest)
	}
	if req.DesiredCount == nil || *req.DesiredCount < 0 {
		return dfv1.WatcherResponse{}, fmt.Errorf("%w: desiredCount must be set and not negative", errBadRequest)
	}
	desired := *req.DesiredCount
	ok := dfv1.WatcherResponse{Status: dfv1.WatcherStatusOK}
	if last, found, err := s.ledger.Get(ctx, req.Handle); err != nil {
		// the ledger is an optimization, go on with the backend
		log.Warnw("Failed to read the scale ledger", zap.Error(err))
	} else if found && last == desired {
		metrics.WatcherScaleSkipped.WithLabelValues(req.Handle, "duplicate").Inc()
		log.Debugw("Scale request already applied", zap.Int("desiredCount", desired))
		return ok, nil
	}
	current, err := s.backend.Desired(ctx, req.Handle)
	if err != nil {
		return dfv1.WatcherResponse{}, err
	}
	switch {
	case current == desired:
		metrics.WatcherScaleSkipped.WithLabelValues(req.Handle, "unchanged").Inc()
	case desired < current && s.disableScaleIn:
		metrics.WatcherScaleSkipped.WithLabelValues(req.Handle, "scale-in-disabled").Inc()
		log.Infow("Scale in is disabled, keeping the desired count", zap.Int("current", current), zap.Int("requested", desired))
		return ok, nil
	default:
		if err := s.backend.SetDesired(ctx, req.Handle, desired); err != nil {
			return dfv1.WatcherResponse{}, err
		}
		log.Infow("Desired count changed", zap.Int("from", current), zap.Int("to", desired))
	}
	if err := s.ledger.Set(ctx, req.Handle, desired); err != nil {
		log.Warnw("Failed to write the scale ledger", zap.Error(err))
	}
	return ok, nil
}
