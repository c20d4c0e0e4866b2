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
	"os"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
)

// InlineMediaEncoder loads a small video into memory and wraps it in an
// inline data part. The client library base64-encodes the bytes on the wire.
type InlineMediaEncoder struct {
	cor.BaseCommand
}

// NewInlineMediaEncoder creates the command.
func NewInlineMediaEncoder(name string) *InlineMediaEncoder {
	out := &InlineMediaEncoder{BaseCommand: *cor.NewBaseCommand(name)}
	out.OutputParamName = GetMediaPartParameterName()
	return out
}

// IsExecutable runs only on the inline path.
func (c *InlineMediaEncoder) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		method(context) == model.MethodInline &&
		context.Get(GetTempFileParameterName()) != nil
}

// Execute reads the temp file and stores the media part.
func (c *InlineMediaEncoder) Execute(context cor.Context) {
	handle, _ := get[*model.TempFileHandle](context, GetTempFileParameterName())
	mediaType, _ := get[string](context, GetMediaTypeParameterName())

	data, err := os.ReadFile(handle.Path)
	if err != nil {
		c.Fail(context, model.NewAnalysisError(model.KindInternal, "failed to read temp file", err))
		return
	}

	context.Add(c.GetOutputParam(), cloud.NewInlinePart(data, mediaType))
	c.Succeed(context)
}
