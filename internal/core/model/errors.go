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

import (
	"context"
	"errors"
	"net/http"
)

// ErrorKind classifies a failed request for the caller.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindPayloadTooLarge   ErrorKind = "payload_too_large"
	KindConfiguration     ErrorKind = "configuration"
	KindStaging           ErrorKind = "staging"
	KindProcessing        ErrorKind = "processing"
	KindProcessingTimeout ErrorKind = "processing_timeout"
	KindGeneration        ErrorKind = "generation"
	KindTimeout           ErrorKind = "timeout"
	KindInternal          ErrorKind = "internal"
)

// HTTPStatus maps the kind to the status code returned by POST /analyze.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindProcessingTimeout, KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AnalysisError is a classified failure. Message is safe to show to the
// caller; Err carries the internal detail and is only logged.
type AnalysisError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewAnalysisError builds an AnalysisError.
func NewAnalysisError(kind ErrorKind, message string, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Message: message, Err: err}
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Classify converts any error returned by the pipeline into an AnalysisError.
// Context deadline and cancellation errors become KindTimeout unless a more
// specific classification is already present.
func Classify(err error) *AnalysisError {
	if err == nil {
		return nil
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAnalysisError(KindTimeout, "analysis timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAnalysisError(KindTimeout, "analysis was canceled", err)
	}
	return NewAnalysisError(KindInternal, "internal error while analyzing the video", err)
}
