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
// This file initializes and holds every client needed to reach the model
// provider. It acts as a dependency injection container: a single
// `ServiceClients` value is created at startup and shared by the workflow.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at application startup with the
//     loaded `Config`.
//  2. For the Gemini backend it requires an API key and stages through the
//     Files API. For the Vertex backend it uses application default
//     credentials and stages through a GCS bucket.
//  3. Each configured agent model is wrapped in a rate-limited
//     `QuotaAwareGenerativeAIModel`.
//
// Structs:
//   - ServiceClients: The clients, the stager and the model tiers.
//
// Functions:
//   - NewCloudServiceClients: Builds ServiceClients from the configuration.
//   - Tiers: Returns the model tiers in fallback order.
//   - Close: Releases client connections.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ErrMissingCredential is returned when the Gemini backend is selected but
// no API key is present in the environment.
var ErrMissingCredential = errors.New("no provider credential configured: set GEMINI_API_KEY or GOOGLE_API_KEY")

// ServiceClients is the central container for the clients that talk to the
// model provider.
type ServiceClients struct {
	GenAIClient   *genai.Client                           // Client for Google's Generative AI services.
	StorageClient *storage.Client                         // Client for Cloud Storage; nil on the Gemini backend.
	Stager        Stager                                  // Staging area for videos above the inline threshold.
	AgentModels   map[string]*QuotaAwareGenerativeAIModel // Model tiers keyed by a logical name.
	tierOrder     []string
}

// Close releases the storage connection, if any. The genai client holds no
// resources that need closing.
func (c *ServiceClients) Close() {
	if c == nil || c.StorageClient == nil {
		return
	}
	if err := c.StorageClient.Close(); err != nil {
		slog.Warn("failed to close storage client", "error", err)
	}
}

// Tiers returns the configured model tiers, primary first.
func (c *ServiceClients) Tiers() []*QuotaAwareGenerativeAIModel {
	tiers := make([]*QuotaAwareGenerativeAIModel, 0, len(c.tierOrder))
	for _, key := range c.tierOrder {
		if m, ok := c.AgentModels[key]; ok {
			tiers = append(tiers, m)
		}
	}
	return tiers
}

// NewCloudServiceClients is a factory function that initializes the provider
// clients based on the provided configuration.
//
// Inputs:
//   - ctx: The root context.Context for the application.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the fully initialized ServiceClients struct.
//   - error: ErrMissingCredential, or an error if a client fails to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	clients := &ServiceClients{tierOrder: config.Generation.Tiers}

	switch config.Application.Backend {
	case BackendVertex:
		gc, err := genai.NewClient(ctx, &genai.ClientConfig{
			Project:  config.Application.GoogleProjectId,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating genai client: %w", err)
		}
		sc, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("error creating storage client: %w", err)
		}
		clients.GenAIClient = gc
		clients.StorageClient = sc
		clients.Stager = NewGCSStager(sc, config.Staging.GCSBucket, config.Staging.GCSPrefix)
	default:
		if config.APIKey == "" {
			return nil, ErrMissingCredential
		}
		gc, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  config.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating genai client: %w", err)
		}
		clients.GenAIClient = gc
		clients.Stager = NewGeminiFileStager(gc.Files)
	}

	clients.AgentModels = NewAgentModels(config.AgentModels, clients.GenAIClient.Models)
	slog.Info("initialized provider clients",
		"backend", config.Application.Backend, "tiers", config.Generation.Tiers)
	return clients, nil
}

// NewAgentModels wraps every configured model in a rate-limited tier that
// shares handle.
func NewAgentModels(models map[string]VertexAiLLMModel, handle ContentGenerator) map[string]*QuotaAwareGenerativeAIModel {
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel, len(models))
	for key, values := range models {
		agentModels[key] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, handle, values.RateLimit)
	}
	return agentModels
}

// NewServiceClients assembles ServiceClients from already constructed parts.
// It is used by tests and by callers that bring their own stager.
func NewServiceClients(stager Stager, agentModels map[string]*QuotaAwareGenerativeAIModel, tierOrder []string) *ServiceClients {
	return &ServiceClients{Stager: stager, AgentModels: agentModels, tierOrder: tierOrder}
}
