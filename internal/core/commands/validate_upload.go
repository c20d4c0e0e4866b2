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

package commands

import (
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/services"
)

// ValidateUpload is the first step of the pipeline. It rejects requests
// without a payload and requests whose declared size is empty or above the
// upload cap, before any byte is written to disk.
type ValidateUpload struct {
	cor.BaseCommand
	router *services.SizeRouter
}

// NewValidateUpload creates the command.
func NewValidateUpload(name string, router *services.SizeRouter) *ValidateUpload {
	return &ValidateUpload{BaseCommand: *cor.NewBaseCommand(name), router: router}
}

// IsExecutable always lets the command run so that a missing request is
// reported as a validation error rather than silently skipped.
func (c *ValidateUpload) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil
}

// Execute validates the request and records the provisional method.
func (c *ValidateUpload) Execute(context cor.Context) {
	request, _ := get[*model.UploadRequest](context, GetUploadRequestParameterName())
	if err := request.Validate(); err != nil {
		c.Fail(context, err)
		return
	}

	size := request.DeclaredSize
	if p, ok := request.Payload.(model.PreEncoded); ok && size <= 0 {
		size = p.DecodedLen()
	}
	method, err := c.router.Route(size)
	if err != nil {
		c.Fail(context, err)
		return
	}

	context.Add(GetMethodParameterName(), method)
	c.Succeed(context)
	LogState(context, model.StateValidated, "declared_size", size, "method", method)
}
