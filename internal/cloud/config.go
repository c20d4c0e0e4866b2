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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files, and the clients that talk to the generative AI
// provider and its staging areas.
//
// This file centralizes all configuration-related structs, making it easy
// to understand and manage the application's configurable parameters.
//
// Structs:
//   - Duration: A time.Duration that decodes from TOML strings such as "5s".
//   - PromptTemplates: Holds the text template for the swing analysis prompt.
//   - VertexAiLLMModel: Configuration for one model tier.
//   - Limits: Inline threshold and absolute upload cap.
//   - Staging: Temp directory, status polling policy and the GCS staging bucket.
//   - Generation: Tier order and the fallback backoff.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that returns a Config populated with defaults.
package cloud

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/genai"
)

// Supported values for Application.Backend.
const (
	BackendGemini = "gemini" // Gemini Developer API, authenticated with an API key; stages through the Files API.
	BackendVertex = "vertex" // Vertex AI with application default credentials; stages through GCS.
)

// Default values applied by NewConfig.
const (
	DefaultInlineThresholdBytes int64 = 20 << 20 // Provider ceiling for inline request payloads.
	DefaultMaxUploadBytes       int64 = 2 << 30  // Largest video accepted at all.
	DefaultPollInterval               = 5 * time.Second
	DefaultMaxPollAttempts            = 10
	DefaultFallbackBackoff            = 2 * time.Second
	DefaultRequestTimeout             = 300 * time.Second
	DefaultCleanupTimeout             = 30 * time.Second
	DefaultSwingPrompt                = `You are an experienced PGA golf instructor. Watch this golf swing video and give the golfer clear, practical feedback.
Cover setup and posture, grip, backswing, transition, downswing, impact, and follow-through.
Point out the two or three most important faults, explain why they matter, and suggest one drill for each.
Keep the tone encouraging and the answer under 500 words.`
)

// DefaultSafetySettings relaxes the default harm filters. Sports coaching
// footage regularly trips the "dangerous content" classifier (clubs, swings
// at speed), which would otherwise surface as empty responses.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
}

// Duration is a time.Duration that can be decoded from a TOML string.
type Duration struct {
	time.Duration
}

// UnmarshalText parses values such as "5s" or "2m30s".
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in time.Duration's string format.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// PromptTemplates holds the templates for prompts sent to the model.
type PromptTemplates struct {
	SwingAnalysis string `toml:"swing_analysis"` // text/template for the swing feedback prompt.
}

// VertexAiLLMModel is the configuration of one model tier.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // Provider model name, e.g. "gemini-2.5-flash".
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the model.
	Temperature        float32 `toml:"temperature"`         // Sampling temperature.
	TopP               float32 `toml:"top_p"`               // Nucleus sampling parameter.
	TopK               float32 `toml:"top_k"`               // Top-k sampling parameter.
	MaxTokens          int32   `toml:"max_tokens"`          // Maximum number of output tokens.
	RateLimit          int     `toml:"rate_limit"`          // Burst size of the per-tier limiter, refilled at one request per second. Zero disables limiting.
}

// Limits are the size limits applied before any processing.
type Limits struct {
	InlineThresholdBytes int64 `toml:"inline_threshold_bytes"` // Videos up to this size are sent inline.
	MaxUploadBytes       int64 `toml:"max_upload_bytes"`       // Videos above this size are rejected.
}

// Staging configures local spooling and remote staging.
type Staging struct {
	TempDir         string   `toml:"temp_dir"`          // Directory for per-request temp files.
	PollInterval    Duration `toml:"poll_interval"`     // Pause between two status checks.
	MaxPollAttempts int      `toml:"max_poll_attempts"` // Number of status checks before giving up.
	GCSBucket       string   `toml:"gcs_bucket"`        // Staging bucket, required for the Vertex backend.
	GCSPrefix       string   `toml:"gcs_prefix"`        // Object prefix inside the staging bucket.
}

// Generation configures the model-tier fallback chain.
type Generation struct {
	Tiers           []string `toml:"tiers"`            // Keys into AgentModels: the primary and at most one fallback.
	FallbackBackoff Duration `toml:"fallback_backoff"` // Pause before each fallback attempt.
}

// Server configures the HTTP transport.
type Server struct {
	Port           int      `toml:"port"`            // Listen port.
	RequestTimeout Duration `toml:"request_timeout"` // Overall deadline of one /analyze call.
	CleanupTimeout Duration `toml:"cleanup_timeout"` // Budget for deleting artifacts after a request.
	AllowedOrigins []string `toml:"allowed_origins"` // CORS origins; empty allows all.
}

// Config is the top-level struct for all application configuration.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                 string `toml:"name"`                   // The name of the application.
		Backend              string `toml:"backend"`                // "gemini" or "vertex".
		GoogleProjectId      string `toml:"google_project_id"`      // The Google Cloud project ID (Vertex and telemetry).
		GoogleLocation       string `toml:"location"`               // The Google Cloud location (Vertex).
		EnableCloudTelemetry bool   `toml:"enable_cloud_telemetry"` // Export traces and metrics to Google Cloud.
		LogFile              string `toml:"log_file"`               // Optional file that receives the logs instead of stdout.
	} `toml:"application"`
	Server          Server                      `toml:"server"`
	Limits          Limits                      `toml:"limits"`
	Staging         Staging                     `toml:"staging"`
	Generation      Generation                  `toml:"generation"`
	PromptTemplates PromptTemplates             `toml:"prompt_templates"`
	AgentModels     map[string]VertexAiLLMModel `toml:"agent_models"` // Model tiers keyed by a logical name (e.g., "fast", "pro").

	// APIKey is the provider credential. It is only ever read from the
	// environment, never from a config file.
	APIKey string `toml:"-"`
}

// NewConfig returns a Config populated with defaults. Values decoded from
// the TOML files later override these.
func NewConfig() *Config {
	c := &Config{
		Server: Server{
			Port:           8080,
			RequestTimeout: Duration{DefaultRequestTimeout},
			CleanupTimeout: Duration{DefaultCleanupTimeout},
		},
		Limits: Limits{
			InlineThresholdBytes: DefaultInlineThresholdBytes,
			MaxUploadBytes:       DefaultMaxUploadBytes,
		},
		Staging: Staging{
			TempDir:         filepath.Join(os.TempDir(), "swing-coach"),
			PollInterval:    Duration{DefaultPollInterval},
			MaxPollAttempts: DefaultMaxPollAttempts,
			GCSPrefix:       "swing-uploads",
		},
		Generation: Generation{
			Tiers:           []string{"fast", "pro"},
			FallbackBackoff: Duration{DefaultFallbackBackoff},
		},
		PromptTemplates: PromptTemplates{SwingAnalysis: DefaultSwingPrompt},
		AgentModels: map[string]VertexAiLLMModel{
			"fast": {Model: "gemini-2.5-flash", Temperature: 0.4, TopP: 0.95, MaxTokens: 2048},
			"pro":  {Model: "gemini-2.5-pro", Temperature: 0.4, TopP: 0.95, MaxTokens: 2048},
		},
	}
	c.Application.Name = "swing-coach"
	c.Application.Backend = BackendGemini
	c.Application.GoogleLocation = "us-central1"
	return c
}

// MaxModelTiers is the primary tier plus a single fallback. The fallback's
// failure is terminal.
const MaxModelTiers = 2

// Validate checks the settings that do not depend on credentials. A missing
// credential is not a validation error: the server still starts and reports
// it per request.
func (c *Config) Validate() error {
	switch c.Application.Backend {
	case BackendGemini:
	case BackendVertex:
		if c.Staging.GCSBucket == "" {
			return fmt.Errorf("staging.gcs_bucket is required for the %s backend", BackendVertex)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Application.Backend)
	}
	if c.Limits.InlineThresholdBytes <= 0 {
		return fmt.Errorf("limits.inline_threshold_bytes must be positive")
	}
	if c.Limits.MaxUploadBytes < c.Limits.InlineThresholdBytes {
		return fmt.Errorf("limits.max_upload_bytes (%d) must not be below limits.inline_threshold_bytes (%d)",
			c.Limits.MaxUploadBytes, c.Limits.InlineThresholdBytes)
	}
	if c.Staging.MaxPollAttempts < 1 {
		return fmt.Errorf("staging.max_poll_attempts must be at least 1")
	}
	if len(c.Generation.Tiers) == 0 || len(c.Generation.Tiers) > MaxModelTiers {
		return fmt.Errorf("generation.tiers must name a primary and at most one fallback tier, got %d", len(c.Generation.Tiers))
	}
	for _, tier := range c.Generation.Tiers {
		if _, ok := c.AgentModels[tier]; !ok {
			return fmt.Errorf("generation tier %q has no agent_models entry", tier)
		}
	}
	return nil
}
