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

// Package api contains the HTTP surface of the swing coach: request parsing,
// the JSON response envelope and the route table.
//
// The /analyze endpoint accepts either a multipart form, with the video in
// the field `file` (or `video`, or `files`), or a JSON body carrying the
// video as base64 in `fileBase64` (or `videoBase64`). Everything after
// parsing is delegated to an Analyzer.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// bodyOverhead is the allowance for multipart boundaries and JSON framing
// on top of the video itself.
const bodyOverhead = 1 << 20

// uploadFields are the multipart field names searched for the video, in order.
var uploadFields = []string{"file", "video", "files"}

// Analyzer runs the analysis pipeline for one parsed upload.
type Analyzer interface {
	Analyze(ctx context.Context, requestID string, request *model.UploadRequest) (*model.AnalysisResult, error)
}

// FileInfo describes the processed video in a successful response.
type FileInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MediaType string `json:"mediaType"`
	Method    string `json:"method"`
	Model     string `json:"model"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// AnalyzeResponse is the JSON envelope of every /analyze response.
type AnalyzeResponse struct {
	Success  bool      `json:"success"`
	Analysis string    `json:"analysis,omitempty"`
	FileInfo *FileInfo `json:"fileInfo,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type analyzeJSON struct {
	FileBase64  string `json:"fileBase64"`
	VideoBase64 string `json:"videoBase64"`
	MimeType    string `json:"mimeType"`
	FileName    string `json:"fileName"`
}

// AnalyzeHandler serves POST /analyze.
type AnalyzeHandler struct {
	config   *cloud.Config
	analyzer Analyzer
}

// NewAnalyzeHandler creates the handler.
func NewAnalyzeHandler(config *cloud.Config, analyzer Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{config: config, analyzer: analyzer}
}

// Handle parses the upload, runs the analysis under the request timeout and
// writes the response envelope.
func (h *AnalyzeHandler) Handle(c *gin.Context) {
	requestID := requestIDFrom(c)
	c.Header(RequestIDHeader, requestID)

	request, release, err := h.parse(c)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}
	defer release()

	ctx, cancel := c.Request.Context(), context.CancelFunc(func() {})
	if timeout := h.config.Server.RequestTimeout.Duration; timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	result, err := h.analyzer.Analyze(ctx, requestID, request)
	if err != nil {
		h.fail(c, requestID, err)
		return
	}

	analysisMethodsTotal.WithLabelValues(string(result.Method), result.Model).Inc()
	name := request.OriginalName
	if name == "" {
		name = "upload"
	}
	c.JSON(http.StatusOK, AnalyzeResponse{
		Success:  true,
		Analysis: result.Text,
		FileInfo: &FileInfo{
			Name:      name,
			Size:      result.Size,
			MediaType: result.MediaType,
			Method:    string(result.Method),
			Model:     result.Model,
			ElapsedMs: result.Elapsed.Milliseconds(),
		},
	})
}

func (h *AnalyzeHandler) fail(c *gin.Context, requestID string, err error) {
	analysisErr := model.Classify(err)
	analysisErrorsTotal.WithLabelValues(string(analysisErr.Kind)).Inc()
	slog.WarnContext(c.Request.Context(), "analyze request failed",
		"request_id", requestID, "kind", analysisErr.Kind, "error", err)
	c.JSON(analysisErr.Kind.HTTPStatus(), AnalyzeResponse{Success: false, Error: analysisErr.Message})
}

// parse builds the UploadRequest from the body. The returned release
// function closes the multipart file, if any, and removes the form's spill
// files.
func (h *AnalyzeHandler) parse(c *gin.Context) (*model.UploadRequest, func(), error) {
	maxBytes := h.config.Limits.MaxUploadBytes
	contentType := c.ContentType()

	var bodyLimit int64
	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		bodyLimit = maxBytes + bodyOverhead
	case contentType == gin.MIMEJSON || contentType == "":
		bodyLimit = base64Len(maxBytes) + bodyOverhead
	default:
		return nil, nil, model.NewAnalysisError(model.KindValidation,
			fmt.Sprintf("unsupported content type %q, expected multipart/form-data or application/json", contentType), nil)
	}

	if c.Request.ContentLength > bodyLimit {
		return nil, nil, tooLarge(maxBytes, nil)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)

	if strings.HasPrefix(contentType, "multipart/") {
		return h.parseMultipart(c, maxBytes)
	}
	request, err := h.parseJSON(c, maxBytes)
	return request, func() {}, err
}

func (h *AnalyzeHandler) parseMultipart(c *gin.Context, maxBytes int64) (*model.UploadRequest, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, bodyError(err, maxBytes, "invalid multipart form")
	}
	// Parts above the engine's MaxMultipartMemory are spilled to disk. The
	// server cannot remove them because otelgin replaced c.Request.
	removeForm := func() {
		if err := form.RemoveAll(); err != nil {
			slog.Warn("failed to remove multipart spill files", "error", err)
		}
	}

	var header *multipart.FileHeader
	for _, field := range uploadFields {
		if files := form.File[field]; len(files) > 0 {
			header = files[0]
			break
		}
	}
	if header == nil {
		removeForm()
		return nil, nil, model.NewAnalysisError(model.KindValidation, "no file provided", nil)
	}

	file, err := header.Open()
	if err != nil {
		removeForm()
		return nil, nil, model.NewAnalysisError(model.KindInternal, "failed to read uploaded file", err)
	}
	release := func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close uploaded file", "error", err)
		}
		removeForm()
	}
	return &model.UploadRequest{
		Payload:      model.RawBytes{Reader: file},
		DeclaredSize: header.Size,
		MediaType:    header.Header.Get("Content-Type"),
		OriginalName: header.Filename,
	}, release, nil
}

func (h *AnalyzeHandler) parseJSON(c *gin.Context, maxBytes int64) (*model.UploadRequest, error) {
	var body analyzeJSON
	if err := c.ShouldBindJSON(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, model.NewAnalysisError(model.KindValidation, "no file provided", nil)
		}
		return nil, bodyError(err, maxBytes, "invalid JSON body")
	}

	encoded := body.FileBase64
	if strings.TrimSpace(encoded) == "" {
		encoded = body.VideoBase64
	}
	if strings.TrimSpace(encoded) == "" {
		return nil, model.NewAnalysisError(model.KindValidation, "no file provided", nil)
	}

	mediaType, data := splitDataURL(encoded)
	if body.MimeType != "" {
		mediaType = body.MimeType
	}
	payload := model.PreEncoded{Base64: data}
	return &model.UploadRequest{
		Payload:      payload,
		DeclaredSize: payload.DecodedLen(),
		MediaType:    mediaType,
		OriginalName: body.FileName,
	}, nil
}

// splitDataURL separates a "data:<type>;base64," prefix from the payload.
// Input without the prefix is returned unchanged with an empty media type.
func splitDataURL(s string) (mediaType string, data string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return "", s
	}
	meta, data, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", s
	}
	mediaType, _, _ = strings.Cut(meta, ";")
	return mediaType, data
}

// base64Len is the encoded length of n bytes, plus a CRLF for every 76
// characters in case the client MIME-wraps the text.
func base64Len(n int64) int64 {
	encoded := (n + 2) / 3 * 4
	return encoded + encoded/76*2
}

func tooLarge(maxBytes int64, err error) error {
	return model.NewAnalysisError(model.KindPayloadTooLarge,
		fmt.Sprintf("video exceeds the maximum upload size of %d bytes", maxBytes), err)
}

func bodyError(err error, maxBytes int64, message string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return tooLarge(maxBytes, err)
	}
	return model.NewAnalysisError(model.KindValidation, message, err)
}

// requestIDFrom reuses a caller-supplied id when it is a uuid. Anything else
// is replaced, because the id becomes part of a temp file name.
func requestIDFrom(c *gin.Context) string {
	if id, err := uuid.Parse(c.GetHeader(RequestIDHeader)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
