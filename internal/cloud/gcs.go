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
// This file implements the Stager interface on top of Google Cloud Storage,
// which is how large videos reach Vertex AI: Vertex reads `gs://` URIs directly
// and has no Files API.
//
// Logic Flow:
//  1. Upload streams the local file into `gs://<bucket>/<prefix>/<file name>`
//     through a storage.Writer. The object only exists once the writer closes
//     without error, so the upload result is reported as PENDING.
//  2. Status reads the object attributes. An object that is not visible yet is
//     still PENDING; a finalized object is ACTIVE.
//  3. Delete removes the object and treats "not found" as success.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
)

// GCSStager stages videos as objects in a Cloud Storage bucket.
type GCSStager struct {
	client *storage.Client // The GCS client for interacting with the storage service.
	bucket string          // The name of the staging bucket.
	prefix string          // Object name prefix inside the bucket.
}

// NewGCSStager creates a stager writing into bucket under prefix.
func NewGCSStager(client *storage.Client, bucket string, prefix string) *GCSStager {
	return &GCSStager{client: client, bucket: bucket, prefix: prefix}
}

// Upload copies the local file into the bucket. The object name is derived
// from the local file name, which is unique per request.
func (s *GCSStager) Upload(ctx context.Context, localPath string, mediaType string, displayName string) (*model.StagedFile, error) {
	dat, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer dat.Close()

	objectName := path.Join(s.prefix, filepath.Base(localPath))
	writer := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = mediaType
	if displayName != "" {
		writer.Metadata = map[string]string{"display-name": displayName}
	}

	if written, err := io.Copy(writer, dat); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to copy to GCS or partial write after %d bytes: %w", written, err)
	}
	// Close finalizes the upload; the object does not exist before it returns.
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize gs://%s/%s: %w", s.bucket, objectName, err)
	}

	slog.DebugContext(ctx, "staged video in GCS", "bucket", s.bucket, "object", objectName)
	return &model.StagedFile{
		Name:      objectName,
		URI:       fmt.Sprintf("gs://%s/%s", s.bucket, objectName),
		MediaType: mediaType,
		State:     model.FileStatePending,
	}, nil
}

// Status reports ACTIVE once the object's attributes are readable.
func (s *GCSStager) Status(ctx context.Context, name string) (*model.StagedFile, error) {
	staged := &model.StagedFile{
		Name:  name,
		URI:   fmt.Sprintf("gs://%s/%s", s.bucket, name),
		State: model.FileStatePending,
	}
	attrs, err := s.client.Bucket(s.bucket).Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return staged, nil
	}
	if err != nil {
		return nil, err
	}
	staged.MediaType = attrs.ContentType
	staged.State = model.FileStateActive
	return staged, nil
}

// Delete removes the staged object.
func (s *GCSStager) Delete(ctx context.Context, name string) error {
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}
