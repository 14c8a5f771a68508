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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/numaproj/fastscaler"
	"github.com/numaproj/fastscaler/pkg/supervisor"
)

// Routes registers the API on the router.
func Routes(r *gin.Engine, s *supervisor.Supervisor, defaultSpec SpecProvider) {
	r.GET("/livez", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, NewAPIResponse(nil, fastscaler.GetVersion()))
	})
	h := newHandler(s, defaultSpec)
	v1 := r.Group("/api/v1")
	v1.GET("/runs", h.ListRuns)
	v1.POST("/runs", h.LaunchRun)
	v1.GET("/runs/:handle", h.GetRun)
	v1.DELETE("/runs/:handle", h.StopRun)
	v1.GET("/classify", h.Classify)
}
