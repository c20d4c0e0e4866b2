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

// FileState is the processing state of a file staged with the provider.
type FileState string

const (
	FileStatePending FileState = "PENDING"
	FileStateActive  FileState = "ACTIVE"
	FileStateFailed  FileState = "FAILED"
)

// StagedFile is a video uploaded to the provider's staging area. It must be
// ACTIVE before it can be referenced by a generation call.
type StagedFile struct {
	Name      string    // Remote identifier, used for status checks and deletion.
	URI       string    // Remote URI referenced in the generation request.
	MediaType string    // MIME type recorded at upload.
	State     FileState // Last observed processing state.
	LastError string    // Remote error detail, if any.
}

// IsActive reports whether the file can be referenced by a generation call.
func (f *StagedFile) IsActive() bool {
	return f != nil && f.State == FileStateActive
}
