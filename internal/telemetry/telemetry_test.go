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

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestLoggerUsesCloudLoggingKeys(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Warn("status poll slow", "request_id", "r-1")

	line := decode(t, &buf)
	assert.Equal(t, "WARNING", line["severity"])
	assert.Equal(t, "status poll slow", line["message"])
	assert.Contains(t, line, "timestamp")
	assert.Equal(t, "r-1", line["request_id"])
}

func TestLoggerAddsTraceContext(t *testing.T) {
	config := cloud.NewConfig()
	shutdown, err := SetupOpenTelemetry(context.Background(), config)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := otel.Tracer("telemetry-test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).With("component", "test").InfoContext(ctx, "inside span")

	line := decode(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), line["logging.googleapis.com/trace"])
	assert.Equal(t, span.SpanContext().SpanID().String(), line["logging.googleapis.com/spanId"])
	assert.Equal(t, "test", line["component"])
}

func TestLoggerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Info("no span")

	assert.NotContains(t, decode(t, &buf), "logging.googleapis.com/trace")
}

func TestLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Debug("hidden")

	assert.Zero(t, buf.Len())
}

func TestLogOutputUsesFileInsteadOfStdout(t *testing.T) {
	assert.Same(t, os.Stdout, logOutput(""))

	path := filepath.Join(t.TempDir(), "swing-coach.log")
	out := logOutput(path)
	file, ok := out.(*os.File)
	require.True(t, ok)
	defer file.Close()
	assert.Equal(t, path, file.Name())

	NewLogger(out, slog.LevelInfo).Info("written to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestLogOutputFallsBackToStdout(t *testing.T) {
	missingDir := filepath.Join(t.TempDir(), "missing", "swing-coach.log")
	assert.Same(t, os.Stdout, logOutput(missingDir))
}
