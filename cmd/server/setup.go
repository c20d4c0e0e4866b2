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

// Package main contains the setup and initialization logic for the application's state.
// This file is responsible for creating and managing a centralized state manager
// that holds all shared dependencies: the configuration, the provider clients
// and the swing analysis workflow.
//
// Functions:
//   - SetupOS: Points the configuration loader at the configs directory unless
//     the environment already does.
//   - GetConfig: Loads the layered TOML configuration once, then applies the
//     environment and validates the result.
//   - InitState: Creates the provider clients and the workflow.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/workflow"
	"github.com/joho/godotenv"
)

// StateManager holds all the shared dependencies for the application.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients
	workflow *workflow.SwingAnalysisWorkflow
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// LoadEnv loads a .env file from the working directory, if there is one.
// Variables already set in the environment win.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// SetupOS sets the environment variables the configuration loader uses to
// find the TOML files, keeping any value that is already set.
func SetupOS() error {
	defaults := map[string]string{
		cloud.EnvConfigFilePrefix: "configs",
		cloud.EnvConfigRuntime:    "local",
	}
	for name, value := range defaults {
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return err
		}
	}
	return nil
}

// GetConfig provides a singleton instance of the application configuration.
func GetConfig() (*cloud.Config, error) {
	if state.config != nil {
		return state.config, nil
	}
	if err := SetupOS(); err != nil {
		return nil, fmt.Errorf("failed to setup environment: %w", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cloud.ApplyEnvironment(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	state.config = config
	return config, nil
}

// InitState creates the provider clients and the workflow. A missing
// credential does not stop the server: the workflow reports it on every
// request instead, so health checks keep passing while the deployment is
// being fixed.
func InitState(ctx context.Context, config *cloud.Config) error {
	clients, clientErr := cloud.NewCloudServiceClients(ctx, config)
	switch {
	case errors.Is(clientErr, cloud.ErrMissingCredential):
		slog.Error("provider credential missing, /analyze will fail until it is set", "error", clientErr)
	case clientErr != nil:
		return clientErr
	}
	state.cloud = clients

	flow, err := workflow.NewSwingAnalysisWorkflow(config, clients, clientErr, nil)
	if err != nil {
		return err
	}
	state.workflow = flow
	return nil
}
