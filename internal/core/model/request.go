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

// Package model defines the data structures that flow through a swing
// analysis request. This file covers the request side: the upload as it
// arrives from the HTTP layer and the local temp file it is spooled into.
//
// Structs:
//   - UploadRequest: One incoming swing video, immutable once built.
//   - RawBytes / PreEncoded: The two variants of the Payload tagged union.
//   - TempFileHandle: The local copy of the payload owned by one request.
package model

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Payload is the tagged union of the two ways a swing video can arrive:
// raw bytes (a multipart file) or a base64 string that the client already
// encoded. Consumers dispatch on it with a type switch.
type Payload interface {
	isPayload()
}

// RawBytes carries the undecoded bytes of an uploaded file.
type RawBytes struct {
	Reader io.Reader
}

// PreEncoded carries a base64-encoded payload, as posted in a JSON body.
// The text may be MIME-wrapped; whitespace inside it is not data.
type PreEncoded struct {
	Base64 string
}

func (RawBytes) isPayload()   {}
func (PreEncoded) isPayload() {}

// DecodedLen returns the number of bytes the base64 payload decodes to,
// without decoding it. Padding and embedded whitespace are accounted for.
func (p PreEncoded) DecodedLen() int64 {
	data := p.compact()
	n := int64(len(data))
	if n == 0 {
		return 0
	}
	padding := int64(strings.Count(data[max(0, len(data)-2):], "="))
	return n/4*3 + (n%4)*3/4 - padding
}

// Reader returns a streaming decoder over the base64 text.
func (p PreEncoded) Reader() io.Reader {
	return base64.NewDecoder(base64.StdEncoding, strings.NewReader(p.compact()))
}

// compact drops all whitespace. strings.Map returns the input unchanged,
// without copying, when there is none.
func (p PreEncoded) compact() string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, p.Base64)
}

// UploadRequest is a single swing video submitted for analysis. It is created
// per HTTP request by the transport layer and discarded after processing.
type UploadRequest struct {
	Payload      Payload // The video content, raw or pre-encoded.
	DeclaredSize int64   // The size in bytes claimed by the client (multipart header or decoded base64 length).
	MediaType    string  // The declared MIME type, e.g. "video/mp4". May be empty.
	OriginalName string  // The client-side file name, used for display names and extensions.
}

// Validate performs the structural checks that do not depend on size limits.
func (r *UploadRequest) Validate() error {
	if r == nil || r.Payload == nil {
		return NewAnalysisError(KindValidation, "no file provided", nil)
	}
	switch p := r.Payload.(type) {
	case RawBytes:
		if p.Reader == nil {
			return NewAnalysisError(KindValidation, "no file provided", nil)
		}
	case PreEncoded:
		if strings.TrimSpace(p.Base64) == "" {
			return NewAnalysisError(KindValidation, "no file provided", nil)
		}
	default:
		return NewAnalysisError(KindValidation, fmt.Sprintf("unsupported payload %T", p), nil)
	}
	return nil
}

// Open returns a reader over the decoded payload bytes.
func (r *UploadRequest) Open() (io.Reader, error) {
	switch p := r.Payload.(type) {
	case RawBytes:
		return p.Reader, nil
	case PreEncoded:
		return p.Reader(), nil
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
}

// TempFileHandle is the local, transient copy of a request's payload. It is
// owned exclusively by one request and always deleted before the response.
type TempFileHandle struct {
	Path      string // Absolute path of the fully written file.
	RequestID string // The request that owns the file.
	Size      int64  // Bytes written.
}
