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

// Package cloud provides components for interacting with Google Cloud services.
// This file defines the Stager abstraction used by the large-video path and
// its Gemini Files API implementation. A staged file is uploaded once, is
// processed asynchronously by the provider and is referenced by URI in the
// generation request once it becomes ACTIVE.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"google.golang.org/genai"
)

// Stager uploads a local file to a provider-side staging area, reports its
// processing state and deletes it.
type Stager interface {
	// Upload sends the file at path and returns the remote handle in the
	// state reported by the upload response.
	Upload(ctx context.Context, path string, mediaType string, displayName string) (*model.StagedFile, error)
	// Status returns the current state of a staged file.
	Status(ctx context.Context, name string) (*model.StagedFile, error)
	// Delete removes a staged file. Deleting a file that no longer exists is
	// not an error.
	Delete(ctx context.Context, name string) error
}

// FileService is the subset of *genai.Files used for staging.
type FileService interface {
	Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

// GeminiFileStager stages videos through the Gemini Files API.
type GeminiFileStager struct {
	files FileService
}

// NewGeminiFileStager wraps a Files client.
func NewGeminiFileStager(files FileService) *GeminiFileStager {
	return &GeminiFileStager{files: files}
}

// Upload streams the local file to the Files API.
func (s *GeminiFileStager) Upload(ctx context.Context, path string, mediaType string, displayName string) (*model.StagedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	file, err := s.files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType:    mediaType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}
	if file == nil || file.Name == "" {
		return nil, errors.New("upload response did not include a file name")
	}
	return toStagedFile(file, mediaType), nil
}

// Status fetches the file metadata.
func (s *GeminiFileStager) Status(ctx context.Context, name string) (*model.StagedFile, error) {
	file, err := s.files.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("status response for %s was empty", name)
	}
	return toStagedFile(file, ""), nil
}

// Delete removes the file. A 404 means it is already gone.
func (s *GeminiFileStager) Delete(ctx context.Context, name string) error {
	if _, err := s.files.Delete(ctx, name, nil); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func toStagedFile(file *genai.File, fallbackMediaType string) *model.StagedFile {
	staged := &model.StagedFile{
		Name:      file.Name,
		URI:       file.URI,
		MediaType: file.MIMEType,
		State:     toFileState(file.State),
	}
	if staged.MediaType == "" {
		staged.MediaType = fallbackMediaType
	}
	if file.Error != nil {
		staged.LastError = file.Error.Message
	}
	return staged
}

func toFileState(state genai.FileState) model.FileState {
	switch state {
	case genai.FileStateActive:
		return model.FileStateActive
	case genai.FileStateFailed:
		return model.FileStateFailed
	default:
		return model.FileStatePending
	}
}

func isNotFound(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusNotFound
	}
	return false
}
