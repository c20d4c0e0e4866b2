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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the swing analysis workflow that serves every /analyze request.
package workflow

import (
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/commands"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/retry"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/services"
	"go.opentelemetry.io/otel/metric"
)

// SwingAnalysisWorkflow turns one uploaded swing video into coaching
// feedback. It is structured as a Chain of Responsibility (cor.Chain):
//
//	validate -> temp file -> inline encode | staged upload + activation -> generate
//
// The chain stops at the first failing command. Whatever the outcome, the
// artifacts the request created are deleted afterwards on a context that is
// detached from request cancellation.
//
// A single workflow serves all requests concurrently; per-request state
// lives only in the cor.Context built by Analyze.
type SwingAnalysisWorkflow struct {
	cor.BaseCommand
	config    *cloud.Config
	clientErr error // Set when the provider clients could not be built; every request fails with it.
	stager    cloud.Stager
	tiers     []*cloud.QuotaAwareGenerativeAIModel
	store     *services.TempFileStore
	router    *services.SizeRouter
	template  *template.Template
	sleep     retry.SleepFunc
	chain     cor.Chain
	cleanup   *commands.ArtifactCleanup
	elapsed   metric.Float64Histogram
}

// NewSwingAnalysisWorkflow is the constructor for the SwingAnalysisWorkflow.
//
// Inputs:
//   - config: The application's overall configuration.
//   - serviceClients: The provider clients; may be nil when clientErr is set.
//   - clientErr: The error returned while building the clients, typically
//     cloud.ErrMissingCredential. The server still starts and reports it per
//     request as a configuration error.
//   - sleep: The pause used by status polling and tier fallback; nil uses
//     retry.Sleep. Tests inject a recorder here.
//
// Returns:
//   - The workflow, or an error if the prompt template does not parse.
func NewSwingAnalysisWorkflow(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	clientErr error,
	sleep retry.SleepFunc) (*SwingAnalysisWorkflow, error) {

	promptTemplate, err := template.New("swing-analysis-template").Parse(config.PromptTemplates.SwingAnalysis)
	if err != nil {
		return nil, fmt.Errorf("invalid swing analysis prompt template: %w", err)
	}

	w := &SwingAnalysisWorkflow{
		BaseCommand: *cor.NewBaseCommand("swing-analysis-workflow"),
		config:      config,
		clientErr:   clientErr,
		store:       services.NewTempFileStore(config.Staging.TempDir, config.Limits.MaxUploadBytes),
		router:      services.NewSizeRouter(config.Limits.InlineThresholdBytes, config.Limits.MaxUploadBytes),
		template:    promptTemplate,
		sleep:       sleep,
	}
	if serviceClients != nil {
		w.stager = serviceClients.Stager
		w.tiers = serviceClients.Tiers()
	}
	if w.clientErr == nil && len(w.tiers) == 0 {
		w.clientErr = fmt.Errorf("no model tiers configured")
	}

	w.elapsed, _ = w.GetMeter().Float64Histogram(fmt.Sprintf("%s.elapsed", w.GetName()), metric.WithUnit("s"))
	w.initializeChain()
	return w, nil
}

// initializeChain builds the sequence of commands that make up this
// workflow. The inline and staged branches are both present; each command
// decides through IsExecutable whether the routed method applies to it.
func (w *SwingAnalysisWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Reject missing, empty and oversized uploads before touching disk.
	out.AddCommand(commands.NewValidateUpload("validate-upload", w.router))

	// Step 2: Spool the payload to a request-scoped temp file and route on
	// the number of bytes actually written.
	out.AddCommand(commands.NewPayloadToTempFile("payload-to-temp-file", w.store, w.router))

	// Step 3a: Small videos travel inside the generation request.
	out.AddCommand(commands.NewInlineMediaEncoder("inline-media-encoder"))

	// Step 3b: Large videos are staged with the provider and polled until
	// they can be referenced.
	out.AddCommand(commands.NewStagedMediaUpload("staged-media-upload", w.stager))
	out.AddCommand(commands.NewStagedMediaActivation("staged-media-activation", w.stager, retry.Policy{
		MaxAttempts: w.config.Staging.MaxPollAttempts,
		Interval:    w.config.Staging.PollInterval.Duration,
		Sleep:       w.sleep,
	}))

	// Step 4: Ask the model tiers for the swing feedback.
	out.AddCommand(commands.NewSwingAnalysisCreator(
		"generate-swing-analysis",
		w.tiers,
		w.template,
		w.config.Generation.FallbackBackoff.Duration,
		w.sleep))

	w.chain = out
	w.cleanup = commands.NewArtifactCleanup("artifact-cleanup", w.stager, w.store)
}

// Analyze runs one request end to end.
//
// Inputs:
//   - ctx: The request context. Its deadline bounds validation, staging and
//     generation, but not cleanup.
//   - requestID: The id used in logs and temp file names; a new uuid is
//     generated when it is empty.
//   - request: The uploaded video.
//
// Returns:
//   - The analysis result, or an error that always unwraps to a
//     *model.AnalysisError.
func (w *SwingAnalysisWorkflow) Analyze(ctx context.Context, requestID string, request *model.UploadRequest) (*model.AnalysisResult, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(ctx)
	chCtx.Add(commands.GetRequestIDParameterName(), requestID)
	if request != nil {
		chCtx.Add(commands.GetUploadRequestParameterName(), request)
	}

	commands.LogState(chCtx, model.StateReceived)

	if w.clientErr != nil {
		err := model.NewAnalysisError(model.KindConfiguration, "analysis service is not configured", w.clientErr)
		w.fail(chCtx, err)
		return nil, err
	}

	defer w.runCleanup(chCtx)

	start := time.Now()
	w.chain.Execute(chCtx)
	elapsed := time.Since(start)

	if err := chCtx.Err(); err != nil {
		analysisErr := model.Classify(err)
		w.fail(chCtx, analysisErr)
		return nil, analysisErr
	}

	text, ok := chCtx.Get(commands.GetAnalysisParameterName()).(string)
	if !ok {
		// The chain may stop between commands without recording an error
		// only if the context ended.
		analysisErr := model.Classify(ctx.Err())
		if analysisErr == nil {
			analysisErr = model.NewAnalysisError(model.KindInternal, "pipeline produced no analysis", nil)
		}
		w.fail(chCtx, analysisErr)
		return nil, analysisErr
	}

	result := &model.AnalysisResult{
		Text:    text,
		Elapsed: elapsed,
	}
	result.Method, _ = chCtx.Get(commands.GetMethodParameterName()).(model.Method)
	result.Model, _ = chCtx.Get(commands.GetModelNameParameterName()).(string)
	result.MediaType, _ = chCtx.Get(commands.GetMediaTypeParameterName()).(string)
	if handle, ok := chCtx.Get(commands.GetTempFileParameterName()).(*model.TempFileHandle); ok && handle != nil {
		result.Size = handle.Size
	}

	if w.SuccessCounter != nil {
		w.SuccessCounter.Add(ctx, 1)
	}
	if w.elapsed != nil {
		w.elapsed.Record(ctx, elapsed.Seconds())
	}
	commands.LogState(chCtx, model.StateSucceeded,
		"method", result.Method, "model", result.Model, "elapsed_ms", elapsed.Milliseconds())
	return result, nil
}

func (w *SwingAnalysisWorkflow) fail(chCtx cor.Context, err *model.AnalysisError) {
	if w.ErrorCounter != nil {
		w.ErrorCounter.Add(chCtx.GetContext(), 1)
	}
	commands.LogState(chCtx, model.StateFailed, "kind", err.Kind, "error", err)
}

// runCleanup deletes the request's artifacts on a context that survives
// request cancellation but is bounded by the cleanup timeout.
func (w *SwingAnalysisWorkflow) runCleanup(chCtx cor.Context) {
	requestCtx := chCtx.GetContext()
	timeout := w.config.Server.CleanupTimeout.Duration
	if timeout <= 0 {
		timeout = cloud.DefaultCleanupTimeout
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(requestCtx), timeout)
	defer cancel()

	chCtx.SetContext(cleanupCtx)
	defer chCtx.SetContext(requestCtx)

	if w.cleanup.IsExecutable(chCtx) {
		w.cleanup.Execute(chCtx)
	}
	commands.LogState(chCtx, model.StateCleanedUp)
}
