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

package services_test

import (
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/jaycherian/gcp-go-swing-coach/internal/core/services"
	test "github.com/jaycherian/gcp-go-swing-coach/internal/testutil"
	"github.com/zeebo/assert"
)

const (
	mib       = int64(1 << 20)
	threshold = 20 * mib
	maxBytes  = 2048 * mib
)

func TestRoute(t *testing.T) {
	router := services.NewSizeRouter(threshold, maxBytes)

	cases := []struct {
		name string
		size int64
		want model.Method
	}{
		{"small clip", 12 * mib, model.MethodInline},
		{"exactly at threshold", threshold, model.MethodInline},
		{"one byte over threshold", threshold + 1, model.MethodStaged},
		{"large clip", 85 * mib, model.MethodStaged},
		{"exactly at cap", maxBytes, model.MethodStaged},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := router.Route(tc.size)
			test.HandleErr(err, t)
			assert.Equal(t, got, tc.want)
		})
	}
}

func TestRouteRejects(t *testing.T) {
	router := services.NewSizeRouter(threshold, maxBytes)

	cases := map[string]struct {
		size int64
		kind model.ErrorKind
	}{
		"empty":    {0, model.KindValidation},
		"negative": {-1, model.KindValidation},
		"over cap": {maxBytes + 1, model.KindPayloadTooLarge},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := router.Route(tc.size)
			assert.Error(t, err)
			var analysisErr *model.AnalysisError
			assert.That(t, errors.As(err, &analysisErr))
			assert.Equal(t, analysisErr.Kind, tc.kind)
		})
	}
}
