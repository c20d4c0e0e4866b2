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

package model

import "time"

// Method is the strategy used to hand the video to the model.
type Method string

const (
	// MethodInline embeds the video bytes in the generation request.
	MethodInline Method = "inline"
	// MethodStaged uploads the video to the provider first and references it.
	MethodStaged Method = "staged"
)

// RequestState is a step of the per-request state machine. It is used for
// logging; the chain itself enforces the ordering.
type RequestState string

const (
	StateReceived         RequestState = "RECEIVED"
	StateValidated        RequestState = "VALIDATED"
	StateInlineProcessing RequestState = "INLINE_PROCESSING"
	StateStagedUploading  RequestState = "STAGED_UPLOADING"
	StateStagedPolling    RequestState = "STAGED_POLLING"
	StateInvoking         RequestState = "INVOKING"
	StateSucceeded        RequestState = "SUCCEEDED"
	StateFailed           RequestState = "FAILED"
	StateCleanedUp        RequestState = "CLEANED_UP"
)

// AnalysisResult is the feedback produced for one swing video.
type AnalysisResult struct {
	Text    string        `json:"text"`    // The model output, returned verbatim.
	Method  Method        `json:"method"`  // Inline or staged.
	Model   string        `json:"model"`   // The model tier that produced the text.
	Elapsed time.Duration `json:"elapsed"` // Wall time from validation to generation.

	Size      int64  `json:"size"`      // Bytes of video actually received.
	MediaType string `json:"mediaType"` // Resolved MIME type.
}
