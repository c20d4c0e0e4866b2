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
// pipeline. Each step is a `cor.Command`; they share state through named
// keys in the `cor.Context`, defined in this file.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
)

// GetUploadRequestParameterName is the key of the incoming *model.UploadRequest.
func GetUploadRequestParameterName() string {
	return "__UPLOAD_REQUEST__"
}

// GetRequestIDParameterName is the key of the request id string.
func GetRequestIDParameterName() string {
	return "__REQUEST_ID__"
}

// GetMethodParameterName is the key of the chosen model.Method.
func GetMethodParameterName() string {
	return "__METHOD__"
}

// GetMediaTypeParameterName is the key of the resolved MIME type.
func GetMediaTypeParameterName() string {
	return "__MEDIA_TYPE__"
}

// GetTempFileParameterName is the key of the *model.TempFileHandle. Its
// presence means a local file exists and must be deleted.
func GetTempFileParameterName() string {
	return "__TEMP_FILE__"
}

// GetStagedFileParameterName is the key of the *model.StagedFile. Its
// presence means a remote file exists and must be deleted.
func GetStagedFileParameterName() string {
	return "__STAGED_FILE__"
}

// GetMediaPartParameterName is the key of the *genai.Part that carries the
// video into the generation request.
func GetMediaPartParameterName() string {
	return "__MEDIA_PART__"
}

// GetAnalysisParameterName is the key of the analysis text.
func GetAnalysisParameterName() string {
	return "__ANALYSIS__"
}

// GetModelNameParameterName is the key of the model that produced the analysis.
func GetModelNameParameterName() string {
	return "__MODEL_NAME__"
}

// get returns the value stored under key if it has type T.
func get[T any](context cor.Context, key string) (T, bool) {
	value, ok := context.Get(key).(T)
	return value, ok
}

func requestID(context cor.Context) string {
	id, _ := get[string](context, GetRequestIDParameterName())
	return id
}

func method(context cor.Context) model.Method {
	m, _ := get[model.Method](context, GetMethodParameterName())
	return m
}

// LogState records a request state transition.
func LogState(context cor.Context, state model.RequestState, args ...any) {
	args = append([]any{"request_id", requestID(context), "state", state}, args...)
	slog.InfoContext(context.GetContext(), "request state changed", args...)
}
