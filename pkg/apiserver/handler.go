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
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/imdario/mergo"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/supervisor"
	"github.com/numaproj/fastscaler/pkg/tier"
)

// SpecProvider returns the spec applied to the runs launched without one.
type SpecProvider func() dfv1.AutoscalerSpec

// LaunchRequest is the body of a launch call.
type LaunchRequest struct {
	Handle string `json:"handle"`
	// Spec overrides the default spec, the fields left empty are taken from the default spec.
	// +optional
	Spec *dfv1.AutoscalerSpec `json:"spec,omitempty"`
}

// RunList is the response of the list call.
type RunList struct {
	Runs  []supervisor.RunStatus `json:"runs"`
	Stats supervisor.Stats       `json:"stats"`
}

// Classification is the response of the classify call.
type Classification struct {
	Avg  float64       `json:"avg"`
	Tier dfv1.TierSpec `json:"tier"`
}

type handler struct {
	supervisor  *supervisor.Supervisor
	defaultSpec SpecProvider
}

func newHandler(s *supervisor.Supervisor, defaultSpec SpecProvider) *handler {
	return &handler{supervisor: s, defaultSpec: defaultSpec}
}

func respondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, NewAPIResponse(&message, nil))
}

// ListRuns lists the active and the recently finished runs.
func (h *handler) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, NewAPIResponse(nil, RunList{Runs: h.supervisor.List(), Stats: h.supervisor.Stats()}))
}

// LaunchRun starts a run for a deployment handle.
func (h *handler) LaunchRun(c *gin.Context) {
	req := LaunchRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, fmt.Sprintf("Failed to decode the request body, %s", err.Error()))
		return
	}
	if req.Handle == "" {
		respondWithError(c, http.StatusBadRequest, "Deployment handle is required")
		return
	}
	spec := h.defaultSpec()
	if req.Spec != nil {
		override := *req.Spec
		// a field set in the request wins, even a pointer to a zero value
		if err := mergo.Merge(&override, spec, mergo.WithoutDereference); err != nil {
			respondWithError(c, http.StatusBadRequest, fmt.Sprintf("Failed to merge the spec, %s", err.Error()))
			return
		}
		spec = override
	}
	status, err := h.supervisor.Launch(c.Request.Context(), req.Handle, spec)
	switch {
	case errors.Is(err, supervisor.ErrAlreadyRunning):
		respondWithError(c, http.StatusConflict, err.Error())
		return
	case err != nil:
		respondWithError(c, http.StatusBadRequest, fmt.Sprintf("Failed to launch a run for %q, %s", req.Handle, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, NewAPIResponse(nil, status))
}

// GetRun returns the active or the last finished run of a handle.
func (h *handler) GetRun(c *gin.Context) {
	handle := c.Param("handle")
	status, ok := h.supervisor.Get(handle)
	if !ok {
		respondWithError(c, http.StatusNotFound, fmt.Sprintf("No run found for %q", handle))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, status))
}

// StopRun cancels the active run of a handle.
func (h *handler) StopRun(c *gin.Context) {
	handle := c.Param("handle")
	if err := h.supervisor.Stop(handle); err != nil {
		respondWithError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, NewAPIResponse(nil, handle))
}

// Classify returns the tier of a load value with the default ladder.
func (h *handler) Classify(c *gin.Context) {
	avg, err := strconv.ParseFloat(c.Query("avg"), 64)
	// NaN and infinities can not be rendered in json
	if err == nil && (math.IsNaN(avg) || math.IsInf(avg, 0)) {
		err = fmt.Errorf("not a finite number")
	}
	if err != nil {
		respondWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid avg %q", c.Query("avg")))
		return
	}
	matched := tier.Classify(h.defaultSpec().GetLadder(), avg)
	c.JSON(http.StatusOK, NewAPIResponse(nil, Classification{Avg: avg, Tier: matched}))
}
