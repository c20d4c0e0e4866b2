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

package services_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSaveWritesCompleteFile(t *testing.T) {
	store := services.NewTempFileStore(filepath.Join(t.TempDir(), "swing-coach"), 0)

	handle, err := store.Save("req-1", strings.NewReader("swing video"), "mp4")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(store.Dir, "swing-req-1.mp4"), handle.Path)
	assert.Equal(t, "req-1", handle.RequestID)
	assert.Equal(t, int64(len("swing video")), handle.Size)
	data, err := os.ReadFile(handle.Path)
	require.NoError(t, err)
	assert.Equal(t, "swing video", string(data))
	assert.Equal(t, []string{"swing-req-1.mp4"}, listDir(t, store.Dir))
}

func TestSaveRemovesPartialFileOnReadError(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), 0)

	handle, err := store.Save("req-2", iotest.ErrReader(errors.New("connection reset")), ".mov")

	assert.Nil(t, handle)
	assert.EqualError(t, err, "connection reset")
	assert.Empty(t, listDir(t, store.Dir))
}

func TestSaveRejectsOversizedPayload(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), 4)

	_, err := store.Save("req-3", strings.NewReader("12345"), ".mp4")

	var analysisErr *model.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, model.KindPayloadTooLarge, analysisErr.Kind)
	assert.Empty(t, listDir(t, store.Dir))
}

func TestSaveAcceptsPayloadAtLimit(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), 4)

	handle, err := store.Save("req-4", strings.NewReader("1234"), ".mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(4), handle.Size)
}

func TestSaveRequiresRequestID(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), 0)

	_, err := store.Save("", strings.NewReader("x"), ".mp4")
	assert.Error(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), 0)
	handle, err := store.Save("req-5", strings.NewReader("x"), ".mp4")
	require.NoError(t, err)

	require.NoError(t, store.Delete(handle))
	require.NoError(t, store.Delete(handle))
	require.NoError(t, store.Delete(nil))
	assert.NoFileExists(t, handle.Path)
}
