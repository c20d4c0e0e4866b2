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

package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-swing-coach/internal/core/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep returns a SleepFunc that records each requested pause
// instead of waiting.
func recordingSleep(pauses *[]time.Duration) retry.SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*pauses = append(*pauses, d)
		return ctx.Err()
	}
}

func TestPollStopsWhenDone(t *testing.T) {
	var pauses []time.Duration
	p := retry.Policy{MaxAttempts: 10, Interval: 5 * time.Second, Sleep: recordingSleep(&pauses)}

	calls := 0
	err := p.Poll(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return attempt == 2, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, pauses)
}

func TestPollExhaustsBudget(t *testing.T) {
	var pauses []time.Duration
	p := retry.Policy{MaxAttempts: 10, Interval: 5 * time.Second, Sleep: recordingSleep(&pauses)}

	calls := 0
	err := p.Poll(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, nil
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, retry.ErrExhausted))
	assert.Equal(t, 10, calls)
	assert.Len(t, pauses, 10)
	assert.Equal(t, 50*time.Second, p.Ceiling())
}

func TestPollReturnsCheckError(t *testing.T) {
	boom := errors.New("remote failed")
	p := retry.Policy{MaxAttempts: 3, Interval: time.Millisecond}

	calls := 0
	err := p.Poll(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPollHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.Policy{MaxAttempts: 5, Interval: time.Millisecond}

	calls := 0
	err := p.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		calls++
		cancel()
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleepReturnsEarlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := retry.Sleep(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollRejectsEmptyBudget(t *testing.T) {
	err := retry.Policy{}.Poll(context.Background(), func(context.Context, int) (bool, error) {
		return true, nil
	})
	assert.Error(t, err)
}
