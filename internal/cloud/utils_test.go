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

package cloud_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// scriptedModels answers per model name and records every call.
type scriptedModels struct {
	answers map[string]func() (*genai.GenerateContentResponse, error)
	calls   []string
}

func (s *scriptedModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.calls = append(s.calls, model)
	return s.answers[model]()
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     100,
			CandidatesTokenCount: 20,
		},
	}
}

func answer(text string) func() (*genai.GenerateContentResponse, error) {
	return func() (*genai.GenerateContentResponse, error) { return textResponse(text), nil }
}

func failure(msg string) func() (*genai.GenerateContentResponse, error) {
	return func() (*genai.GenerateContentResponse, error) { return nil, errors.New(msg) }
}

func tiers(models *scriptedModels) []*cloud.QuotaAwareGenerativeAIModel {
	return []*cloud.QuotaAwareGenerativeAIModel{
		cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-2.5-flash", models, 0),
		cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-2.5-pro", models, 0),
	}
}

type recordedSleep struct {
	pauses []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.pauses = append(r.pauses, d)
	return ctx.Err()
}

func TestGenerateWithFallbackPrimarySucceeds(t *testing.T) {
	models := &scriptedModels{answers: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.5-flash": answer("Keep your head still."),
	}}
	sleeper := &recordedSleep{}

	text, modelName, err := cloud.GenerateWithFallback(context.Background(), cloud.GenerationMetrics{},
		tiers(models), 2*time.Second, sleeper.sleep, genai.Text("analyze"))

	require.NoError(t, err)
	assert.Equal(t, "Keep your head still.", text)
	assert.Equal(t, "gemini-2.5-flash", modelName)
	assert.Equal(t, []string{"gemini-2.5-flash"}, models.calls)
	assert.Empty(t, sleeper.pauses)
}

func TestGenerateWithFallbackUsesSecondaryAfterBackoff(t *testing.T) {
	models := &scriptedModels{answers: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.5-flash": failure("503 overloaded"),
		"gemini-2.5-pro":   answer("Shallow your downswing."),
	}}
	sleeper := &recordedSleep{}

	text, modelName, err := cloud.GenerateWithFallback(context.Background(), cloud.GenerationMetrics{},
		tiers(models), 2*time.Second, sleeper.sleep, genai.Text("analyze"))

	require.NoError(t, err)
	assert.Equal(t, "Shallow your downswing.", text)
	assert.Equal(t, "gemini-2.5-pro", modelName)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-pro"}, models.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.pauses)
}

func TestGenerateWithFallbackTreatsEmptyTextAsFailure(t *testing.T) {
	models := &scriptedModels{answers: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.5-flash": answer("   "),
		"gemini-2.5-pro":   answer("Rotate through impact."),
	}}

	text, modelName, err := cloud.GenerateWithFallback(context.Background(), cloud.GenerationMetrics{},
		tiers(models), time.Second, (&recordedSleep{}).sleep, genai.Text("analyze"))

	require.NoError(t, err)
	assert.Equal(t, "Rotate through impact.", text)
	assert.Equal(t, "gemini-2.5-pro", modelName)
}

func TestGenerateWithFallbackBothTiersFail(t *testing.T) {
	models := &scriptedModels{answers: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.5-flash": failure("primary down"),
		"gemini-2.5-pro":   failure("secondary down"),
	}}

	_, _, err := cloud.GenerateWithFallback(context.Background(), cloud.GenerationMetrics{},
		tiers(models), time.Second, (&recordedSleep{}).sleep, genai.Text("analyze"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary down")
	assert.Contains(t, err.Error(), "secondary down")
	assert.Len(t, models.calls, 2)
}

func TestGenerateWithFallbackNeverCallsThirdTier(t *testing.T) {
	models := &scriptedModels{answers: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.5-flash": failure("primary down"),
		"gemini-2.5-pro":   failure("secondary down"),
		"gemini-ultra":     answer("should not be asked"),
	}}
	sleeper := &recordedSleep{}
	three := append(tiers(models), cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-ultra", models, 0))

	_, _, err := cloud.GenerateWithFallback(context.Background(), cloud.GenerationMetrics{},
		three, time.Second, sleeper.sleep, genai.Text("analyze"))

	require.Error(t, err)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-pro"}, models.calls)
	assert.Len(t, sleeper.pauses, 1)
}

func TestGenerateWithFallbackStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	models := &scriptedModels{answers: map[string]func() (*genai.GenerateContentResponse, error){
		"gemini-2.5-flash": func() (*genai.GenerateContentResponse, error) {
			cancel()
			return nil, context.Canceled
		},
		"gemini-2.5-pro": answer("never"),
	}}

	_, _, err := cloud.GenerateWithFallback(ctx, cloud.GenerationMetrics{},
		tiers(models), time.Second, (&recordedSleep{}).sleep, genai.Text("analyze"))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"gemini-2.5-flash"}, models.calls)
}

func TestGenerateWithFallbackWithoutTiers(t *testing.T) {
	_, _, err := cloud.GenerateWithFallback(context.Background(), cloud.GenerationMetrics{},
		nil, time.Second, nil, genai.Text("analyze"))
	assert.Error(t, err)
}

func TestResponseTextSkipsThoughts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
		{Text: "thinking about the takeaway", Thought: true},
		{Text: "Your takeaway "},
		{Text: "is too inside."},
	}}}}}

	assert.Equal(t, "Your takeaway is too inside.", cloud.ResponseText(resp))
	assert.Equal(t, "", cloud.ResponseText(nil))
}

func TestQuotaAwareModelHonorsCanceledContext(t *testing.T) {
	models := &scriptedModels{}
	tier := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-2.5-flash", models, 1)
	// Drain the single burst token.
	require.True(t, tier.RateLimit.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tier.GenerateContent(ctx, genai.Text("analyze"))

	assert.Error(t, err)
	assert.Empty(t, models.calls)
}
