// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter builds the Gin engine with tracing, CORS and Prometheus
// middleware and registers every route:
//   - POST /analyze and POST /api/v1/analyze: swing analysis.
//   - GET /api/v1/stats: service limits.
//   - GET /healthz: liveness.
//   - GET /metrics: Prometheus exposition.
func NewRouter(config *cloud.Config, analyzer Analyzer) *gin.Engine {
	r := gin.Default()

	// Creates a span for each request; commands nest their spans below it.
	r.Use(otelgin.Middleware(config.Application.Name))
	r.Use(corsMiddleware(config.Server.AllowedOrigins))
	r.Use(metricsMiddleware())

	analyze := NewAnalyzeHandler(config, analyzer)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/analyze", analyze.Handle)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/analyze", analyze.Handle)
		Dashboard(apiV1, config)
	}
	return r
}

// corsMiddleware allows every origin unless a list is configured.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		return cors.Default()
	}
	return cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	})
}
