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
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/metrics"
)

const transportHTTP = "http"

// Routes registers the watcher endpoint on the router.
func Routes(r gin.IRouter, svc *Service) {
	r.POST(dfv1.DefaultWatcherHTTPPath, func(c *gin.Context) {
		req := dfv1.WatcherRequest{}
		b, err := io.ReadAll(c.Request.Body)
		if err == nil {
			err = json.Unmarshal(b, &req)
		}
		if err != nil {
			metrics.WatcherRequests.WithLabelValues(transportHTTP, "", "error").Inc()
			c.JSON(http.StatusBadRequest, errorResponse(err))
			return
		}
		resp, err := svc.Handle(c.Request.Context(), req)
		if err != nil {
			metrics.WatcherRequests.WithLabelValues(transportHTTP, string(req.Action), "error").Inc()
			c.JSON(statusCode(err), resp)
			return
		}
		metrics.WatcherRequests.WithLabelValues(transportHTTP, string(req.Action), "ok").Inc()
		c.JSON(http.StatusOK, resp)
	})
	r.GET("/livez", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownHandle):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
