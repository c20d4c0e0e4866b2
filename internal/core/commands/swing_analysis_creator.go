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
// pipeline. This file defines the `SwingAnalysisCreator` command, which
// asks the model for swing feedback.
//
// Logic Flow:
//  1. Render the prompt from the configured Go template.
//  2. Build one user message holding the prompt and the media part (inline
//     bytes or a staged file reference).
//  3. Call the model tiers through `cloud.GenerateWithFallback`: the primary
//     tier first, then, after a short backoff, the fallback tier once.
//  4. Store the text exactly as the model returned it.
package commands

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/retry"
	"google.golang.org/genai"
)

// SwingAnalysisCreator generates the swing feedback.
type SwingAnalysisCreator struct {
	cor.BaseCommand
	tiers    []*cloud.QuotaAwareGenerativeAIModel // Model tiers, primary first.
	template *template.Template                   // The Go template for building the prompt.
	backoff  time.Duration                        // Pause before each fallback tier.
	sleep    retry.SleepFunc                      // Pause implementation; nil uses retry.Sleep.
	metrics  cloud.GenerationMetrics              // Token and fallback counters.
}

// NewSwingAnalysisCreator creates the command.
func NewSwingAnalysisCreator(
	name string,
	tiers []*cloud.QuotaAwareGenerativeAIModel,
	template *template.Template,
	backoff time.Duration,
	sleep retry.SleepFunc) *SwingAnalysisCreator {

	out := &SwingAnalysisCreator{
		BaseCommand: *cor.NewBaseCommand(name),
		tiers:       tiers,
		template:    template,
		backoff:     backoff,
		sleep:       sleep,
	}
	out.InputParamName = GetMediaPartParameterName()
	out.OutputParamName = GetAnalysisParameterName()

	out.metrics.InputTokens, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.metrics.OutputTokens, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.metrics.Fallbacks, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.fallback", out.GetName()))

	return out
}

// GenerateParams returns the values available to the prompt template.
func (t *SwingAnalysisCreator) GenerateParams(context cor.Context) map[string]interface{} {
	params := make(map[string]interface{})
	params["MEDIA_TYPE"], _ = get[string](context, GetMediaTypeParameterName())
	if request, ok := get[*model.UploadRequest](context, GetUploadRequestParameterName()); ok && request != nil {
		params["FILE_NAME"] = PromptFileName(request.OriginalName)
	}
	return params
}

// maxPromptFileName caps the client file name quoted in the prompt.
const maxPromptFileName = 64

// PromptFileName reduces a client-supplied file name to a short base name
// of letters, digits, spaces and ".-_", so it cannot carry instructions or
// break out of the quotes around it in the prompt.
func PromptFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		if b.Len() >= maxPromptFileName {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Execute renders the prompt and calls the model tiers.
func (t *SwingAnalysisCreator) Execute(context cor.Context) {
	mediaPart, _ := get[*genai.Part](context, t.GetInputParam())

	var buffer bytes.Buffer
	if err := t.template.Execute(&buffer, t.GenerateParams(context)); err != nil {
		t.Fail(context, model.NewAnalysisError(model.KindInternal, "failed to execute prompt template", err))
		return
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				cloud.NewTextPart(buffer.String()),
				mediaPart,
			},
			Role: genai.RoleUser,
		},
	}

	out, modelName, err := cloud.GenerateWithFallback(context.GetContext(), t.metrics, t.tiers, t.backoff, t.sleep, contents)
	if err != nil {
		if ctxErr := context.GetContext().Err(); ctxErr != nil {
			t.Fail(context, fmt.Errorf("generation interrupted: %w", ctxErr))
			return
		}
		t.Fail(context, model.NewAnalysisError(model.KindGeneration, "all model tiers failed", err))
		return
	}

	context.Add(t.GetOutputParam(), out)
	context.Add(GetModelNameParameterName(), modelName)
	t.Succeed(context)
}
