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

// Package cloud provides components for interacting with Google Cloud services.
// This file contains general-purpose utility functions that support the cloud package.
//
// Functions:
//   - fileExists: A simple helper to check if a file exists.
//   - LoadConfig: Implements a hierarchical configuration loader. It first reads a base
//     configuration file and then overwrites values with a second, environment-specific
//     file (e.g., .env.local.toml, .env.test.toml).
//   - ApplyEnvironment: Copies credentials and deployment overrides from the environment.
//   - GenerateWithFallback: Calls the model tiers in order until one returns text,
//     pausing before each fallback and recording token usage.
//   - ResponseText: Extracts the answer text from a model response.
//   - NewTextPart, NewInlinePart, NewFileDataPart: Factories for genai.Part values.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/retry"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// Cloud Constants define key strings used for configuration loading.
const (
	ConfigFileBaseName  = ".env"                // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"               // The file extension for configuration files.
	ConfigSeparator     = "."                   // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "SWING_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "SWING_RUNTIME"       // The environment variable for the runtime context (e.g., "local", "test", "prod").
	EnvGeminiAPIKey     = "GEMINI_API_KEY"      // Preferred credential variable.
	EnvGoogleAPIKey     = "GOOGLE_API_KEY"      // Fallback credential variable.
	EnvPort             = "PORT"                // Listen port override set by Cloud Run.
)

// ErrEmptyResponse is returned when a model answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// fileExists checks if a file or directory exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig provides a hierarchical configuration loading mechanism. It first loads a
// base configuration file and then merges or overwrites its values with an environment-specific
// configuration file. Missing files are skipped; a file that exists but does not decode is an
// error.
//
// Inputs:
//   - baseConfig: A pointer to the target configuration struct.
//
// Outputs:
//   - error: The first decoding error, if any.
func LoadConfig(baseConfig interface{}) error {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "local"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	for _, fileName := range []string{baseConfigFileName, envConfigFileName} {
		if !fileExists(fileName) {
			slog.Debug("configuration file not found, skipping", "file", fileName)
			continue
		}
		if _, err := toml.DecodeFile(fileName, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", fileName, err)
		}
		slog.Info("loaded configuration file", "file", fileName, "runtime", runtimeEnvironment)
	}
	return nil
}

// ApplyEnvironment copies the provider credential and deployment overrides
// from the environment into config. GEMINI_API_KEY wins over GOOGLE_API_KEY.
func ApplyEnvironment(config *Config) {
	for _, name := range []string{EnvGeminiAPIKey, EnvGoogleAPIKey} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			config.APIKey = v
			break
		}
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		} else {
			slog.Warn("ignoring invalid port override", "value", v, "error", err)
		}
	}
}

// GenerationMetrics are the counters updated by GenerateWithFallback. Any of
// them may be nil.
type GenerationMetrics struct {
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter
	Fallbacks    metric.Int64Counter
}

// GenerateWithFallback sends the same contents to each tier in order and
// returns the first non-empty answer together with the model that produced
// it. Before every tier after the first it pauses for backoff. The pause
// honors ctx, so a canceled request never reaches the next tier.
//
// Inputs:
//   - ctx: The context for the request, which controls cancellation and tracing.
//   - metrics: Token and fallback counters.
//   - tiers: The model tiers, primary first. Tiers past the first fallback
//     are never called.
//   - backoff: The pause before each fallback attempt.
//   - sleep: The pause implementation; nil uses retry.Sleep.
//   - contents: The multi-modal prompt.
//
// Outputs:
//   - string: The model's text, unmodified.
//   - string: The name of the model that answered.
//   - error: All tier errors joined, or the context error that stopped the fallback.
func GenerateWithFallback(
	ctx context.Context,
	metrics GenerationMetrics,
	tiers []*QuotaAwareGenerativeAIModel,
	backoff time.Duration,
	sleep retry.SleepFunc,
	contents []*genai.Content) (string, string, error) {
	if len(tiers) == 0 {
		return "", "", errors.New("no model tiers configured")
	}
	if sleep == nil {
		sleep = retry.Sleep
	}
	tiers = tiers[:min(len(tiers), MaxModelTiers)]

	var errs []error
	for i, tier := range tiers {
		if i > 0 {
			slog.WarnContext(ctx, "model tier failed, falling back",
				"failed_model", tiers[i-1].ModelName, "next_model", tier.ModelName, "backoff", backoff, "error", errs[len(errs)-1])
			if metrics.Fallbacks != nil {
				metrics.Fallbacks.Add(ctx, 1)
			}
			if err := sleep(ctx, backoff); err != nil {
				return "", "", fmt.Errorf("fallback to %s aborted: %w", tier.ModelName, err)
			}
		}

		resp, err := tier.GenerateContent(ctx, contents)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tier.ModelName, err))
			continue
		}
		recordUsage(ctx, metrics, resp)

		text := ResponseText(resp)
		if strings.TrimSpace(text) == "" {
			errs = append(errs, fmt.Errorf("%s: %w", tier.ModelName, ErrEmptyResponse))
			continue
		}
		return text, tier.ModelName, nil
	}
	return "", "", errors.Join(errs...)
}

func recordUsage(ctx context.Context, metrics GenerationMetrics, resp *genai.GenerateContentResponse) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	if metrics.InputTokens != nil {
		metrics.InputTokens.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
	}
	if metrics.OutputTokens != nil {
		metrics.OutputTokens.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}
}

// ResponseText concatenates the text parts of the first candidate that has
// content. Thought parts are skipped. The text is returned as-is.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
		return sb.String()
	}
	return ""
}

// NewTextPart creates a text part.
func NewTextPart(in string) *genai.Part {
	return &genai.Part{Text: in}
}

// NewInlinePart creates a part that carries the media bytes in the request.
func NewInlinePart(data []byte, mimeType string) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}}
}

// NewFileDataPart creates a part that references a staged file by URI.
func NewFileDataPart(uri string, mimeType string) *genai.Part {
	return &genai.Part{FileData: &genai.FileData{FileURI: uri, MIMEType: mimeType}}
}
