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
// pipeline. This file defines the `StagedMediaUpload` command.
//
// Videos above the inline threshold cannot travel inside the generation
// request. They are uploaded to the provider's staging area first (the
// Gemini Files API, or a GCS bucket for Vertex AI) and referenced by URI.
// The provider processes a staged file asynchronously; the state returned
// here is usually PENDING and `StagedMediaActivation` waits for ACTIVE.
package commands

import (
	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
)

// StagedMediaUpload uploads the temp file to the stager.
type StagedMediaUpload struct {
	cor.BaseCommand
	stager cloud.Stager // Remote staging area.
}

// NewStagedMediaUpload creates the command.
func NewStagedMediaUpload(name string, stager cloud.Stager) *StagedMediaUpload {
	return &StagedMediaUpload{BaseCommand: *cor.NewBaseCommand(name), stager: stager}
}

// IsExecutable runs only on the staged path.
func (c *StagedMediaUpload) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		method(context) == model.MethodStaged &&
		context.Get(GetTempFileParameterName()) != nil
}

// Execute uploads the file and records the staged handle, which makes it
// eligible for remote cleanup.
func (c *StagedMediaUpload) Execute(context cor.Context) {
	if c.stager == nil {
		c.Fail(context, model.NewAnalysisError(model.KindConfiguration, "no staging area is configured", nil))
		return
	}

	handle, _ := get[*model.TempFileHandle](context, GetTempFileParameterName())
	mediaType, _ := get[string](context, GetMediaTypeParameterName())
	request, _ := get[*model.UploadRequest](context, GetUploadRequestParameterName())

	staged, err := c.stager.Upload(context.GetContext(), handle.Path, mediaType, DisplayName(request, handle.RequestID))
	if err != nil {
		if ctxErr := context.GetContext().Err(); ctxErr != nil {
			c.Fail(context, ctxErr)
			return
		}
		c.Fail(context, model.NewAnalysisError(model.KindStaging, "failed to upload video for processing", err))
		return
	}
	if staged.MediaType == "" {
		staged.MediaType = mediaType
	}

	context.Add(GetStagedFileParameterName(), staged)
	c.Succeed(context)
	LogState(context, model.StateStagedPolling, "staged_name", staged.Name, "remote_state", staged.State)
}
