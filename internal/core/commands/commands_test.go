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

package commands_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"strings"
	"testing"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/commands"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/services"
	test "github.com/jaycherian/gcp-go-swing-coach/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const (
	threshold = int64(1024)
	maxBytes  = int64(4096)
)

func newContext(request *model.UploadRequest) cor.Context {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(commands.GetRequestIDParameterName(), "req-42")
	if request != nil {
		chCtx.Add(commands.GetUploadRequestParameterName(), request)
	}
	return chCtx
}

func rawRequest(data []byte, mediaType string, name string) *model.UploadRequest {
	return &model.UploadRequest{
		Payload:      model.RawBytes{Reader: bytes.NewReader(data)},
		DeclaredSize: int64(len(data)),
		MediaType:    mediaType,
		OriginalName: name,
	}
}

func errorKind(t *testing.T, chCtx cor.Context) model.ErrorKind {
	t.Helper()
	var analysisErr *model.AnalysisError
	require.ErrorAs(t, chCtx.Err(), &analysisErr)
	return analysisErr.Kind
}

func TestValidateUploadRejectsMissingFile(t *testing.T) {
	cmd := commands.NewValidateUpload("validate", services.NewSizeRouter(threshold, maxBytes))
	chCtx := newContext(nil)

	require.True(t, cmd.IsExecutable(chCtx))
	cmd.Execute(chCtx)

	assert.Equal(t, model.KindValidation, errorKind(t, chCtx))
	assert.Contains(t, chCtx.Err().Error(), "no file provided")
}

func TestValidateUploadRejectsOversizedDeclaredSize(t *testing.T) {
	cmd := commands.NewValidateUpload("validate", services.NewSizeRouter(threshold, maxBytes))
	request := rawRequest([]byte("x"), "video/mp4", "big.mp4")
	request.DeclaredSize = maxBytes + 1
	chCtx := newContext(request)

	cmd.Execute(chCtx)

	assert.Equal(t, model.KindPayloadTooLarge, errorKind(t, chCtx))
}

func TestValidateUploadUsesDecodedLengthForBase64(t *testing.T) {
	cmd := commands.NewValidateUpload("validate", services.NewSizeRouter(threshold, maxBytes))
	encoded := base64.StdEncoding.EncodeToString(test.TestVideo(int(threshold) + 10))
	chCtx := newContext(&model.UploadRequest{Payload: model.PreEncoded{Base64: encoded}})

	cmd.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, model.MethodStaged, chCtx.Get(commands.GetMethodParameterName()))
}

func TestValidateUploadAcceptsWrappedBase64NearCap(t *testing.T) {
	cmd := commands.NewValidateUpload("validate", services.NewSizeRouter(threshold, maxBytes))
	encoded := base64.StdEncoding.EncodeToString(test.TestVideo(int(maxBytes) - 16))
	var wrapped strings.Builder
	for len(encoded) > 76 {
		wrapped.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	wrapped.WriteString(encoded)
	chCtx := newContext(&model.UploadRequest{Payload: model.PreEncoded{Base64: wrapped.String()}})

	cmd.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, model.MethodStaged, chCtx.Get(commands.GetMethodParameterName()))
}

func TestPayloadToTempFileSniffsMediaType(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), maxBytes)
	router := services.NewSizeRouter(threshold, maxBytes)
	chCtx := newContext(rawRequest(test.TestVideo(512), "", "clip"))
	chCtx.Add(commands.GetMethodParameterName(), model.MethodInline)

	cmd := commands.NewPayloadToTempFile("temp", store, router)
	require.True(t, cmd.IsExecutable(chCtx))
	cmd.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	handle := chCtx.Get(commands.GetTempFileParameterName()).(*model.TempFileHandle)
	assert.Equal(t, store.PathFor("req-42", ".mp4"), handle.Path)
	assert.Equal(t, int64(512), handle.Size)
	assert.Equal(t, "video/mp4", chCtx.Get(commands.GetMediaTypeParameterName()))
	assert.Equal(t, model.MethodInline, chCtx.Get(commands.GetMethodParameterName()))
}

func TestPayloadToTempFileRoutesOnActualSize(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), maxBytes)
	request := rawRequest(test.TestVideo(2048), "video/mp4", "swing.mp4")
	request.DeclaredSize = 10
	chCtx := newContext(request)
	chCtx.Add(commands.GetMethodParameterName(), model.MethodInline)

	commands.NewPayloadToTempFile("temp", store, services.NewSizeRouter(threshold, maxBytes)).Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, model.MethodStaged, chCtx.Get(commands.GetMethodParameterName()))
}

func TestPayloadToTempFileRejectsCorruptBase64(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), maxBytes)
	chCtx := newContext(&model.UploadRequest{Payload: model.PreEncoded{Base64: "%%%not-base64%%%"}})
	chCtx.Add(commands.GetMethodParameterName(), model.MethodInline)

	commands.NewPayloadToTempFile("temp", store, services.NewSizeRouter(threshold, maxBytes)).Execute(chCtx)

	assert.Equal(t, model.KindValidation, errorKind(t, chCtx))
	assert.Nil(t, chCtx.Get(commands.GetTempFileParameterName()))
	entries, err := os.ReadDir(store.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolveMediaType(t *testing.T) {
	assert.Equal(t, "video/quicktime", commands.ResolveMediaType("video/QuickTime; codecs=avc1", filetype.Unknown))
	assert.Equal(t, "video/mp4", commands.ResolveMediaType("", filetype.Unknown))
	assert.Equal(t, "video/mp4", commands.ResolveMediaType("application/octet-stream", filetype.Unknown))
	assert.Equal(t, ".mov", commands.ResolveExtension("Swing.MOV", "video/quicktime", filetype.Unknown))
	assert.Equal(t, ".webm", commands.ResolveExtension("", "video/webm", filetype.Unknown))
	assert.Equal(t, ".bin", commands.ResolveExtension("../../etc/passwd", "application/x-unknown", filetype.Unknown))
}

func TestInlineMediaEncoderBuildsInlinePart(t *testing.T) {
	store := services.NewTempFileStore(t.TempDir(), 0)
	data := test.TestVideo(64)
	handle, err := store.Save("req-42", bytes.NewReader(data), ".mp4")
	require.NoError(t, err)

	chCtx := newContext(nil)
	chCtx.Add(commands.GetMethodParameterName(), model.MethodInline)
	chCtx.Add(commands.GetTempFileParameterName(), handle)
	chCtx.Add(commands.GetMediaTypeParameterName(), "video/mp4")

	cmd := commands.NewInlineMediaEncoder("inline")
	require.True(t, cmd.IsExecutable(chCtx))
	cmd.Execute(chCtx)

	part := chCtx.Get(commands.GetMediaPartParameterName()).(*genai.Part)
	require.NotNil(t, part.InlineData)
	assert.Equal(t, data, part.InlineData.Data)
	assert.Equal(t, "video/mp4", part.InlineData.MIMEType)
	assert.Nil(t, part.FileData)
}

func TestInlineMediaEncoderSkipsStagedRequests(t *testing.T) {
	chCtx := newContext(nil)
	chCtx.Add(commands.GetMethodParameterName(), model.MethodStaged)
	chCtx.Add(commands.GetTempFileParameterName(), &model.TempFileHandle{Path: "x"})

	assert.False(t, commands.NewInlineMediaEncoder("inline").IsExecutable(chCtx))
}
