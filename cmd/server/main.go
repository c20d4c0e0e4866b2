// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the swing coach backend server.
//
// This application sets up and runs a web server using the Gin framework. It
// accepts golf swing videos on /analyze and answers with coaching feedback
// produced by Gemini. The server is instrumented with OpenTelemetry for
// logging, tracing, and metrics, and exposes Prometheus HTTP metrics.
//
// Functions:
//   - main: The main entry point of the application. It sets up the server,
//     initializes services, and handles graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-swing-coach/internal/api"
	"github.com/jaycherian/gcp-go-swing-coach/internal/telemetry"
)

// shutdownGrace is how long in-flight analyses get to finish, including
// their cleanup, after a termination signal.
const shutdownGrace = 60 * time.Second

func main() {
	if err := LoadEnv(); err != nil {
		log.Fatal(err)
	}

	config, err := GetConfig()
	if err != nil {
		log.Fatal(err)
	}

	telemetry.SetupLogging(config.Application.LogFile)
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if err := InitState(ctx, config); err != nil {
		slog.Error("Failed to initialize state", "error", err)
		log.Fatal(err)
	}
	defer state.cloud.Close()
	slog.Info("Initialized State")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Server.Port),
		Handler:           api.NewRouter(config, state.workflow),
		ReadHeaderTimeout: 20 * time.Second,
		// Writes wait for the whole analysis, so the write deadline follows
		// the request timeout.
		WriteTimeout: config.Server.RequestTimeout.Duration + config.Server.CleanupTimeout.Duration,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("Server ready", "port", config.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}
	slog.Info("Server exiting")
}
