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

// Package test provides shared helpers for the package tests: configuration
// loading, fixture payloads and in-memory fakes for the staging area, the
// model client and the retry sleeper.
package test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"google.golang.org/genai"
)

// StateManager caches the loaded test configuration.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is non-nil.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at the repository's configs
// directory and the "test" runtime.
func SetupOS(prefix string) (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, prefix)
	if err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads (once) the layered test configuration from prefix.
func GetConfig(prefix string) *cloud.Config {
	if state.config == nil {
		if err := SetupOS(prefix); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// TestVideo returns size bytes that start with an ISO base media ("ftyp")
// header, which is enough for content sniffing to see an MP4 file.
func TestVideo(size int) []byte {
	header := []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2mp41")
	if size < len(header) {
		size = len(header)
	}
	out := bytes.Repeat([]byte{0x42}, size)
	copy(out, header)
	return out
}

// FakeStager is an in-memory cloud.Stager. Upload returns UploadState and
// each Status call returns the next entry of Statuses, repeating the last one.
type FakeStager struct {
	mu sync.Mutex

	UploadState model.FileState
	UploadErr   error
	Statuses    []model.FileState
	StatusErr   error
	LastError   string
	DeleteErr   error

	Uploads     []string // Local paths passed to Upload.
	StatusCalls int
	Deleted     []string
}

// Upload records the call and returns a staged file named after the path.
func (f *FakeStager) Upload(_ context.Context, path string, mediaType string, displayName string) (*model.StagedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uploads = append(f.Uploads, path)
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("fake stager cannot read %s: %w", path, err)
	}
	name := fmt.Sprintf("files/%s", displayName)
	uploadState := f.UploadState
	if uploadState == "" {
		uploadState = model.FileStatePending
	}
	return &model.StagedFile{
		Name:      name,
		URI:       "https://example.invalid/" + name,
		MediaType: mediaType,
		State:     uploadState,
	}, nil
}

// Status returns the next scripted state.
func (f *FakeStager) Status(_ context.Context, name string) (*model.StagedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusCalls++
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}
	next := model.FileStatePending
	if len(f.Statuses) > 0 {
		idx := f.StatusCalls - 1
		if idx >= len(f.Statuses) {
			idx = len(f.Statuses) - 1
		}
		next = f.Statuses[idx]
	}
	staged := &model.StagedFile{Name: name, State: next}
	if next == model.FileStateFailed {
		staged.LastError = f.LastError
	}
	return staged, nil
}

// Delete records the call.
func (f *FakeStager) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, name)
	return f.DeleteErr
}

// Reply is one scripted model answer.
type Reply struct {
	Text string
	Err  error
}

// FakeModels is a cloud.ContentGenerator that answers per model name.
// Models without a script fail.
type FakeModels struct {
	mu       sync.Mutex
	Replies  map[string]Reply
	Calls    []string
	Contents [][]*genai.Content
}

// GenerateContent returns the scripted reply for model.
func (f *FakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, model)
	f.Contents = append(f.Contents, contents)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply, ok := f.Replies[model]
	if !ok {
		return nil, errors.New("no scripted reply for " + model)
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: reply.Text}}}}},
	}, nil
}

// Tiers wraps the fake in the two default model tiers, without rate limiting.
func (f *FakeModels) Tiers(primary string, fallback string) []*cloud.QuotaAwareGenerativeAIModel {
	return []*cloud.QuotaAwareGenerativeAIModel{
		cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, primary, f, 0),
		cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, fallback, f, 0),
	}
}

// Sleeper records pauses instead of sleeping.
type Sleeper struct {
	mu     sync.Mutex
	Pauses []time.Duration
}

// Sleep records d and reports the context's error.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pauses = append(s.Pauses, d)
	return ctx.Err()
}

// Count returns the number of recorded pauses of length d.
func (s *Sleeper) Count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.Pauses {
		if p == d {
			n++
		}
	}
	return n
}
