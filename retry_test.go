// Copyright 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package oemipmi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryConfig_DefaultRetryConfig(t *testing.T) {
	t.Parallel()

	config := DefaultRetryConfig()

	assert.Positive(t, config.MaxAttempts)
	assert.Greater(t, config.MaxBackoff, config.InitialBackoff)
	assert.Greater(t, config.BackoffMultiplier, 1.0)
	assert.GreaterOrEqual(t, config.Jitter, 0.0)
	assert.LessOrEqual(t, config.Jitter, 1.0)
	assert.Greater(t, config.RetryTimeout, time.Duration(0))
}

func TestRetryConfig_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current time.Duration
		mult    float64
		want    time.Duration
	}{
		{name: "doubles", current: 100 * time.Millisecond, mult: 2.0, want: 200 * time.Millisecond},
		{name: "caps at maximum", current: 3 * time.Second, mult: 2.0, want: 5 * time.Second},
		{name: "fractional multiplier", current: 200 * time.Millisecond, mult: 1.5, want: 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := &RetryConfig{BackoffMultiplier: tt.mult, MaxBackoff: 5 * time.Second}
			assert.Equal(t, tt.want, c.next(tt.current))
		})
	}
}

func TestRetryConfig_Jittered(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	noJitter := &RetryConfig{}
	assert.Equal(t, base, noJitter.jittered(base))

	c := &RetryConfig{Jitter: 0.5}
	for range 20 {
		d := c.jittered(base)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestRetryWithConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr   error
		errs      []error
		name      string
		attempts  int
		wantCalls int
	}{
		{name: "first try succeeds", attempts: 3, errs: []error{nil}, wantCalls: 1},
		{
			name:      "retryable then success",
			attempts:  3,
			errs:      []error{NewTransportNotReadyError("dial", "dbus"), nil},
			wantCalls: 2,
		},
		{
			name:      "permanent error not retried",
			attempts:  3,
			errs:      []error{ErrDeviceAbsent},
			wantErr:   ErrDeviceAbsent,
			wantCalls: 1,
		},
		{
			name:      "attempts exhausted",
			attempts:  3,
			errs:      []error{ErrTransportTimeout, ErrTransportTimeout, ErrTransportTimeout},
			wantErr:   ErrTransportTimeout,
			wantCalls: 3,
		},
		{
			name:      "zero attempts runs once",
			attempts:  0,
			errs:      []error{ErrTransportTimeout},
			wantErr:   ErrTransportTimeout,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := RetryWithConfig(context.Background(), fastRetryConfig(tt.attempts), func() error {
				e := tt.errs[min(calls, len(tt.errs)-1)]
				calls++
				return e
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRetryWithConfig_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, fastRetryConfig(5), func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetryWithConfig_StopsAtTimeout(t *testing.T) {
	t.Parallel()

	config := &RetryConfig{
		MaxAttempts:       100,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 1.0,
		RetryTimeout:      50 * time.Millisecond,
	}

	calls := 0
	start := time.Now()
	err := RetryWithConfig(context.Background(), config, func() error {
		calls++
		return ErrTransportNotReady
	})
	require.ErrorIs(t, err, ErrTransportNotReady)
	assert.Less(t, calls, 100)
	assert.Less(t, time.Since(start), time.Second)
}
