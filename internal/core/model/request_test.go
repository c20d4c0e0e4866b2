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

package model_test

import (
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-swing-coach/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wrap breaks s into lines of width characters, as MIME encoders do.
func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteString("\r\n")
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

func TestPreEncodedDecodedLen(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 100, 4096} {
		encoded := base64.StdEncoding.EncodeToString(make([]byte, size))
		assert.Equal(t, int64(size), model.PreEncoded{Base64: encoded}.DecodedLen(), "size %d", size)
	}
}

func TestPreEncodedIgnoresWhitespace(t *testing.T) {
	video := []byte(strings.Repeat("swing", 200))
	wrapped := " " + wrap(base64.StdEncoding.EncodeToString(video), 76) + "\n\t"
	payload := model.PreEncoded{Base64: wrapped}

	assert.Equal(t, int64(len(video)), payload.DecodedLen())

	decoded, err := io.ReadAll(payload.Reader())
	require.NoError(t, err)
	assert.Equal(t, video, decoded)
}
