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

package services

import (
	"fmt"

	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
)

// SizeRouter picks the transport for a video from its size alone.
type SizeRouter struct {
	InlineThreshold int64 // Inclusive upper bound for inline requests.
	MaxBytes        int64 // Inclusive upper bound for any request.
}

// NewSizeRouter creates a router.
func NewSizeRouter(inlineThreshold int64, maxBytes int64) *SizeRouter {
	return &SizeRouter{InlineThreshold: inlineThreshold, MaxBytes: maxBytes}
}

// Route returns MethodInline for sizes up to and including the threshold
// and MethodStaged above it. Empty or oversized videos are rejected.
func (r *SizeRouter) Route(size int64) (model.Method, error) {
	switch {
	case size <= 0:
		return "", model.NewAnalysisError(model.KindValidation, "file is empty", nil)
	case r.MaxBytes > 0 && size > r.MaxBytes:
		return "", model.NewAnalysisError(model.KindPayloadTooLarge,
			fmt.Sprintf("file is %d bytes, the limit is %d bytes", size, r.MaxBytes), nil)
	case size <= r.InlineThreshold:
		return model.MethodInline, nil
	default:
		return model.MethodStaged, nil
	}
}
