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

package cloud_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	test "github.com/jaycherian/gcp-go-swing-coach/internal/testutil"
	"github.com/zeebo/assert"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNewConfigDefaults(t *testing.T) {
	config := cloud.NewConfig()

	assert.Equal(t, config.Limits.InlineThresholdBytes, int64(20*1024*1024))
	assert.Equal(t, config.Limits.MaxUploadBytes, int64(2*1024*1024*1024))
	assert.Equal(t, config.Staging.PollInterval.Duration, 5*time.Second)
	assert.Equal(t, config.Staging.MaxPollAttempts, 10)
	assert.Equal(t, config.Generation.FallbackBackoff.Duration, 2*time.Second)
	assert.Equal(t, config.Generation.Tiers, []string{"fast", "pro"})
	assert.Equal(t, config.Application.Backend, cloud.BackendGemini)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigLayersRuntimeOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env.toml"), `
[application]
name = "swing-coach"

[staging]
poll_interval = "3s"
max_poll_attempts = 4

[generation]
fallback_backoff = "1s"
`)
	writeFile(t, filepath.Join(dir, ".env.test.toml"), `
[staging]
max_poll_attempts = 2
`)
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "test")

	config := cloud.NewConfig()
	assert.NoError(t, cloud.LoadConfig(config))

	assert.Equal(t, config.Staging.PollInterval.Duration, 3*time.Second)
	assert.Equal(t, config.Staging.MaxPollAttempts, 2)
	assert.Equal(t, config.Generation.FallbackBackoff.Duration, time.Second)
	// Untouched values keep their defaults.
	assert.Equal(t, config.Limits.InlineThresholdBytes, cloud.DefaultInlineThresholdBytes)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env.toml"), `
[staging]
poll_interval = "soon"
`)
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "none")

	assert.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}

func TestApplyEnvironmentPrefersGeminiKey(t *testing.T) {
	t.Setenv(cloud.EnvGeminiAPIKey, "gemini-key")
	t.Setenv(cloud.EnvGoogleAPIKey, "google-key")
	t.Setenv(cloud.EnvPort, "9090")

	config := cloud.NewConfig()
	cloud.ApplyEnvironment(config)

	assert.Equal(t, config.APIKey, "gemini-key")
	assert.Equal(t, config.Server.Port, 9090)
}

func TestApplyEnvironmentFallsBackToGoogleKey(t *testing.T) {
	t.Setenv(cloud.EnvGeminiAPIKey, "")
	t.Setenv(cloud.EnvGoogleAPIKey, "google-key")

	config := cloud.NewConfig()
	cloud.ApplyEnvironment(config)

	assert.Equal(t, config.APIKey, "google-key")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *cloud.Config){
		"unknown backend":       func(c *cloud.Config) { c.Application.Backend = "azure" },
		"vertex without bucket": func(c *cloud.Config) { c.Application.Backend = cloud.BackendVertex },
		"cap below threshold":   func(c *cloud.Config) { c.Limits.MaxUploadBytes = 1 },
		"no poll attempts":      func(c *cloud.Config) { c.Staging.MaxPollAttempts = 0 },
		"no tiers":              func(c *cloud.Config) { c.Generation.Tiers = nil },
		"tier without model":    func(c *cloud.Config) { c.Generation.Tiers = []string{"fast", "ultra"} },
		"second fallback tier": func(c *cloud.Config) {
			c.AgentModels["ultra"] = c.AgentModels["pro"]
			c.Generation.Tiers = []string{"fast", "pro", "ultra"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := cloud.NewConfig()
			mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestNewCloudServiceClientsRequiresCredential(t *testing.T) {
	config := cloud.NewConfig()
	config.APIKey = ""

	_, err := cloud.NewCloudServiceClients(context.Background(), config)
	assert.Equal(t, err, cloud.ErrMissingCredential)
}

func TestRepositoryConfigurationLoads(t *testing.T) {
	config := test.GetConfig("../../configs")

	assert.NoError(t, config.Validate())
	assert.Equal(t, config.Application.Name, "swing-coach-test")
	assert.Equal(t, config.Limits.InlineThresholdBytes, int64(1024))
	assert.Equal(t, config.Staging.PollInterval.Duration, 10*time.Millisecond)
	// Base file values survive the runtime overlay.
	assert.Equal(t, config.Generation.FallbackBackoff.Duration, 2*time.Second)
	assert.Equal(t, config.AgentModels["pro"].Model, "gemini-2.5-pro")
	assert.That(t, strings.Contains(config.PromptTemplates.SwingAnalysis, "{{.FILE_NAME}}"))
}
