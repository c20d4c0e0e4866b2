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

// Package commands contains the individual steps of the swing analysis
// pipeline. This file waits for a staged file to become usable.
//
// Logic Flow:
//  1. The state returned by the upload is examined first. ACTIVE needs no
//     polling and FAILED fails at once.
//  2. Otherwise the retry policy pauses and checks the status, up to its
//     attempt budget. PENDING keeps polling.
//  3. ACTIVE produces a file-reference media part. FAILED maps to a
//     Processing error, an exhausted budget to a ProcessingTimeout error.
//     Both carry the last observed state.
package commands

import (
	gocontext "context"
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/retry"
	"go.opentelemetry.io/otel/metric"
)

// StagedMediaActivation polls the stager until the staged file is ACTIVE.
type StagedMediaActivation struct {
	cor.BaseCommand
	stager      cloud.Stager
	policy      retry.Policy
	pollCounter metric.Int64Counter // Number of status checks issued.
}

// NewStagedMediaActivation creates the command.
func NewStagedMediaActivation(name string, stager cloud.Stager, policy retry.Policy) *StagedMediaActivation {
	out := &StagedMediaActivation{BaseCommand: *cor.NewBaseCommand(name), stager: stager, policy: policy}
	out.OutputParamName = GetMediaPartParameterName()
	out.pollCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.counter.poll", out.GetName()))
	return out
}

// IsExecutable runs once a staged file exists.
func (c *StagedMediaActivation) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		method(context) == model.MethodStaged &&
		context.Get(GetStagedFileParameterName()) != nil
}

// Execute waits for activation and stores the media part.
func (c *StagedMediaActivation) Execute(context cor.Context) {
	staged, _ := get[*model.StagedFile](context, GetStagedFileParameterName())

	last, err := c.waitUntilActive(context, staged)
	if err != nil {
		c.Fail(context, err)
		return
	}

	context.Add(c.GetOutputParam(), cloud.NewFileDataPart(last.URI, last.MediaType))
	c.Succeed(context)
}

func (c *StagedMediaActivation) waitUntilActive(context cor.Context, staged *model.StagedFile) (*model.StagedFile, error) {
	last := staged
	if staged.IsActive() {
		return last, nil
	}
	if staged.State == model.FileStateFailed {
		return nil, processingFailed(last)
	}

	checks := 0
	err := c.policy.Poll(context.GetContext(), func(ctx gocontext.Context, attempt int) (bool, error) {
		checks = attempt
		if c.pollCounter != nil {
			c.pollCounter.Add(ctx, 1)
		}
		current, err := c.stager.Status(ctx, staged.Name)
		if err != nil {
			return false, fmt.Errorf("status check %d for %s: %w", attempt, staged.Name, err)
		}
		if current.URI == "" {
			current.URI = last.URI
		}
		if current.MediaType == "" {
			current.MediaType = last.MediaType
		}
		last = current
		// Keep the context copy current for logging and cleanup.
		context.Add(GetStagedFileParameterName(), last)

		if current.IsActive() {
			return true, nil
		}
		if current.State == model.FileStateFailed {
			return false, processingFailed(current)
		}
		return false, nil
	})

	switch {
	case err == nil:
		LogState(context, model.StateInvoking, "staged_name", last.Name, "status_checks", checks)
		return last, nil
	case errors.Is(err, retry.ErrExhausted):
		return nil, model.NewAnalysisError(model.KindProcessingTimeout,
			fmt.Sprintf("video was still %s after %d status checks (%s)", last.State, checks, c.policy.Ceiling()), err)
	default:
		var analysisErr *model.AnalysisError
		if errors.As(err, &analysisErr) || context.GetContext().Err() != nil {
			return nil, err
		}
		return nil, model.NewAnalysisError(model.KindProcessing, "failed to check video processing status", err)
	}
}

func processingFailed(staged *model.StagedFile) error {
	msg := fmt.Sprintf("video processing failed (state %s)", staged.State)
	if staged.LastError != "" {
		msg = fmt.Sprintf("%s: %s", msg, staged.LastError)
	}
	return model.NewAnalysisError(model.KindProcessing, msg, nil)
}
