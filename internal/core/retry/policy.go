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

// Package retry holds the bounded polling policy used while a staged video
// is being processed by the provider. The policy is a value object so the
// attempt budget, the interval and the terminal-state check can be tested
// without real sleeps.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Poll when the attempt budget is used up before
// the check reported completion.
var ErrExhausted = errors.New("retry budget exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy is a fixed-interval, fixed-budget polling policy.
type Policy struct {
	MaxAttempts int           // Number of status checks after the initial state.
	Interval    time.Duration // Pause before each check.
	Sleep       SleepFunc     // Optional; defaults to a context-aware timer.
}

// Check is one polling attempt. attempt starts at 1. Returning done=true
// stops polling successfully; a non-nil error stops polling with that error.
type Check func(ctx context.Context, attempt int) (done bool, err error)

// Ceiling is the longest the policy sleeps across all attempts.
func (p Policy) Ceiling() time.Duration {
	if p.MaxAttempts < 1 {
		return 0
	}
	return time.Duration(p.MaxAttempts) * p.Interval
}

// Poll waits Interval and then runs check, up to MaxAttempts times. It stops
// when check reports done, returns an error, or the context is done. The
// caller is expected to have inspected the initial state itself, which is
// why every check is preceded by a pause. On exhaustion the returned error
// wraps ErrExhausted.
func (p Policy) Poll(ctx context.Context, check Check) error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry policy: max attempts %d", p.MaxAttempts)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrExhausted, p.MaxAttempts)
}

// Sleep pauses for d, returning early with the context's error if it is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
