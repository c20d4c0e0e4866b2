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
// pipeline. This file spools the request payload to a local temp file.
//
// Logic Flow:
//  1. The payload (raw bytes or base64 text) is opened as a stream.
//  2. The first bytes are sniffed with h2non/filetype to resolve the media
//     type and the file extension when the client did not declare a video type.
//  3. The stream is written to the request's temp file.
//  4. The method is routed again on the real byte count, which is
//     authoritative over the size the client declared.
package commands

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/services"
)

// DefaultMediaType is assumed when neither the client nor the content say otherwise.
const DefaultMediaType = "video/mp4"

// sniffLen is the number of leading bytes filetype needs to recognize a container.
const sniffLen = 262

var (
	safeExtension = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

	videoExtensions = map[string]string{
		"video/mp4":        ".mp4",
		"video/quicktime":  ".mov",
		"video/webm":       ".webm",
		"video/x-msvideo":  ".avi",
		"video/mpeg":       ".mpeg",
		"video/3gpp":       ".3gp",
		"video/x-matroska": ".mkv",
		"video/x-m4v":      ".m4v",
	}
)

// PayloadToTempFile writes the upload into exactly one temp file per request.
type PayloadToTempFile struct {
	cor.BaseCommand
	store  *services.TempFileStore
	router *services.SizeRouter
}

// NewPayloadToTempFile creates the command.
func NewPayloadToTempFile(name string, store *services.TempFileStore, router *services.SizeRouter) *PayloadToTempFile {
	return &PayloadToTempFile{BaseCommand: *cor.NewBaseCommand(name), store: store, router: router}
}

// IsExecutable requires a validated request.
func (c *PayloadToTempFile) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		context.Get(GetUploadRequestParameterName()) != nil &&
		context.Get(GetMethodParameterName()) != nil
}

// Execute spools the payload and records the temp file handle, the media
// type and the final method.
func (c *PayloadToTempFile) Execute(context cor.Context) {
	request, _ := get[*model.UploadRequest](context, GetUploadRequestParameterName())

	reader, err := request.Open()
	if err != nil {
		c.Fail(context, model.NewAnalysisError(model.KindValidation, "unreadable payload", err))
		return
	}

	buffered := bufio.NewReaderSize(reader, 4096)
	header, err := buffered.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		c.Fail(context, payloadError(err))
		return
	}
	kind, _ := filetype.Match(header)
	mediaType := ResolveMediaType(request.MediaType, kind)
	ext := ResolveExtension(request.OriginalName, mediaType, kind)

	handle, err := c.store.Save(requestID(context), buffered, ext)
	if err != nil {
		c.Fail(context, payloadError(err))
		return
	}
	// Recorded before routing so that cleanup always sees the file.
	context.Add(GetTempFileParameterName(), handle)
	context.Add(GetMediaTypeParameterName(), mediaType)

	method, err := c.router.Route(handle.Size)
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(GetMethodParameterName(), method)
	c.Succeed(context)

	state := model.StateInlineProcessing
	if method == model.MethodStaged {
		state = model.StateStagedUploading
	}
	LogState(context, state, "size", handle.Size, "media_type", mediaType, "path", handle.Path)
}

// payloadError classifies a failure while reading the payload. Corrupt base64
// is the client's fault; everything else is an I/O problem on our side.
func payloadError(err error) error {
	var analysisErr *model.AnalysisError
	if errors.As(err, &analysisErr) {
		return err
	}
	var corrupt base64.CorruptInputError
	if errors.As(err, &corrupt) {
		return model.NewAnalysisError(model.KindValidation, "invalid base64 payload", err)
	}
	return model.NewAnalysisError(model.KindInternal, "failed to write temp file", err)
}

// ResolveMediaType prefers a declared video type, then the sniffed type,
// then any other declared type, then DefaultMediaType.
func ResolveMediaType(declared string, kind types.Type) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	switch {
	case strings.HasPrefix(declared, "video/"):
		return declared
	case kind != filetype.Unknown && kind.MIME.Value != "":
		return kind.MIME.Value
	case declared != "" && declared != "application/octet-stream":
		return declared
	default:
		return DefaultMediaType
	}
}

// ResolveExtension picks the temp file extension from the sniffed type, the
// client's file name or the media type, in that order.
func ResolveExtension(originalName string, mediaType string, kind types.Type) string {
	if kind != filetype.Unknown && kind.Extension != "" {
		return "." + kind.Extension
	}
	if ext := strings.ToLower(filepath.Ext(originalName)); safeExtension.MatchString(ext) {
		return ext
	}
	if ext, ok := videoExtensions[mediaType]; ok {
		return ext
	}
	return ".bin"
}

// DisplayName returns a name for the staged file, derived from the client's
// file name when it has one.
func DisplayName(request *model.UploadRequest, fallback string) string {
	if request != nil {
		if name := strings.TrimSpace(filepath.Base(request.OriginalName)); name != "" && name != "." && name != string(filepath.Separator) {
			return name
		}
	}
	return fmt.Sprintf("swing-%s", fallback)
}
