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

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
)

// Dashboard registers the read-only service endpoints:
//   - GET /stats: the limits and model tiers clients should know about
//     before uploading, e.g. to warn about oversized videos.
func Dashboard(r *gin.RouterGroup, config *cloud.Config) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			tiers := make([]string, 0, len(config.Generation.Tiers))
			for _, key := range config.Generation.Tiers {
				tiers = append(tiers, config.AgentModels[key].Model)
			}
			c.JSON(http.StatusOK, gin.H{
				"backend":              config.Application.Backend,
				"inlineThresholdBytes": config.Limits.InlineThresholdBytes,
				"maxUploadBytes":       config.Limits.MaxUploadBytes,
				"models":               tiers,
			})
		})
	}
}
