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

// Package services holds the stateless helpers used by the swing analysis
// pipeline. This file implements the per-request temp file store.
//
// Every upload is spooled to exactly one local file before it is encoded or
// staged. The file is written under a `.part` name and renamed once it is
// complete, so a handle never points at a partially written file.
package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
)

// TempFilePrefix is the name prefix of every spooled video.
const TempFilePrefix = "swing-"

// TempFileStore writes request payloads into Dir.
type TempFileStore struct {
	Dir      string // Directory holding the temp files; created on first use.
	MaxBytes int64  // Largest accepted payload. Zero means no limit.
}

// NewTempFileStore creates a store rooted at dir.
func NewTempFileStore(dir string, maxBytes int64) *TempFileStore {
	return &TempFileStore{Dir: dir, MaxBytes: maxBytes}
}

// PathFor returns the final path of the temp file for a request.
func (s *TempFileStore) PathFor(requestID string, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.Dir, TempFilePrefix+requestID+ext)
}

// Save streams r into the request's temp file. The returned handle refers
// to a fully written, closed file. On any failure the partial file is
// removed and no handle is returned.
//
// Inputs:
//   - requestID: The unique id of the request, used to namespace the file.
//   - r: The payload bytes.
//   - ext: The file extension, with or without the leading dot.
//
// Outputs:
//   - *model.TempFileHandle: The handle of the written file.
//   - error: A PayloadTooLarge AnalysisError when MaxBytes is exceeded,
//     otherwise the I/O error.
func (s *TempFileStore) Save(requestID string, r io.Reader, ext string) (*model.TempFileHandle, error) {
	if requestID == "" {
		return nil, errors.New("temp file requires a request id")
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create temp dir %s: %w", s.Dir, err)
	}

	finalPath := s.PathFor(requestID, ext)
	partPath := filepath.Join(s.Dir, requestID+".part")

	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not create temp file: %w", err)
	}

	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}
	written, err := io.Copy(f, src)
	if err == nil && s.MaxBytes > 0 && written > s.MaxBytes {
		err = model.NewAnalysisError(model.KindPayloadTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", s.MaxBytes), nil)
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(partPath, finalPath)
	}
	if err != nil {
		if rmErr := os.Remove(partPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("failed to remove partial temp file", "path", partPath, "error", rmErr)
		}
		return nil, err
	}

	return &model.TempFileHandle{Path: finalPath, RequestID: requestID, Size: written}, nil
}

// Delete removes the file behind handle. A file that is already gone is not
// an error.
func (s *TempFileStore) Delete(handle *model.TempFileHandle) error {
	if handle == nil || handle.Path == "" {
		return nil
	}
	err := os.Remove(handle.Path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("temp file already removed", "path", handle.Path, "request_id", handle.RequestID)
		return nil
	}
	return err
}
