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
// pipeline. This file defines `ArtifactCleanup`, which deletes whatever a
// request left behind: the staged remote file and the local temp file.
//
// The command runs after the chain, whatever the outcome, on a Go context
// that the caller has detached from request cancellation. Cleanup failures
// are logged and counted but never recorded as request errors, so they
// cannot change the response.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-swing-coach/internal/cloud"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/cor"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/services"
)

// ArtifactCleanup removes the remote and local artifacts of a request.
type ArtifactCleanup struct {
	cor.BaseCommand
	stager cloud.Stager            // Remote staging area; may be nil when no credential is configured.
	store  *services.TempFileStore // Local temp file store.
}

// NewArtifactCleanup creates the command.
func NewArtifactCleanup(name string, stager cloud.Stager, store *services.TempFileStore) *ArtifactCleanup {
	return &ArtifactCleanup{BaseCommand: *cor.NewBaseCommand(name), stager: stager, store: store}
}

// IsExecutable reports whether there is anything to clean up.
func (c *ArtifactCleanup) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		(context.Get(GetStagedFileParameterName()) != nil || context.Get(GetTempFileParameterName()) != nil)
}

// Execute deletes the staged file first, then the temp file. Both are
// attempted even if the first fails. Deleted artifacts are removed from the
// context, so a second run has nothing left to do.
func (c *ArtifactCleanup) Execute(context cor.Context) {
	ctx := context.GetContext()
	failed := false

	if staged, ok := get[*model.StagedFile](context, GetStagedFileParameterName()); ok && staged != nil {
		switch {
		case c.stager == nil:
			slog.WarnContext(ctx, "no stager configured, skipping remote delete",
				"request_id", requestID(context), "staged_name", staged.Name)
		default:
			if err := c.stager.Delete(ctx, staged.Name); err != nil {
				failed = true
				slog.ErrorContext(ctx, "failed to delete staged file",
					"request_id", requestID(context), "staged_name", staged.Name, "error", err)
			} else {
				context.Remove(GetStagedFileParameterName())
				slog.DebugContext(ctx, "deleted staged file", "request_id", requestID(context), "staged_name", staged.Name)
			}
		}
	}

	if handle, ok := get[*model.TempFileHandle](context, GetTempFileParameterName()); ok && handle != nil {
		if err := c.store.Delete(handle); err != nil {
			failed = true
			slog.ErrorContext(ctx, "failed to delete temp file",
				"request_id", requestID(context), "path", handle.Path, "error", err)
		} else {
			context.Remove(GetTempFileParameterName())
		}
	}

	if failed {
		if c.ErrorCounter != nil {
			c.ErrorCounter.Add(ctx, 1)
		}
		return
	}
	c.Succeed(context)
}
