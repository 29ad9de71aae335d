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
	"bytes"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureDebug swaps the session log writer for a buffer for the duration
// of a test. Tests using it must not run in parallel.
func captureDebug(t *testing.T) *bytes.Buffer {
	t.Helper()

	origEnabled := debugEnabled
	sessionLogMu.Lock()
	origWriter := sessionLogWriter
	var buf bytes.Buffer
	sessionLogWriter = &buf
	sessionLogMu.Unlock()
	debugEnabled = false

	t.Cleanup(func() {
		debugEnabled = origEnabled
		sessionLogMu.Lock()
		sessionLogWriter = origWriter
		sessionLogMu.Unlock()
	})
	return &buf
}

func TestDebugf_WritesToSessionLog(t *testing.T) {
	buf := captureDebug(t)

	Debugf("probe device %d", 3)

	assert.Contains(t, buf.String(), "DEBUG: probe device 3\n")
}

func TestDebugf_IncludesTimestamp(t *testing.T) {
	buf := captureDebug(t)

	Debugf("header read")

	matched, err := regexp.MatchString(`^\d{2}:\d{2}:\d{2}\.\d{3} DEBUG: header read`, buf.String())
	require.NoError(t, err)
	assert.True(t, matched, "got: %s", buf.String())
}

func TestDebugf_MultipleMessages(t *testing.T) {
	buf := captureDebug(t)

	Debugf("message 1")
	Debugf("message 2")
	Debugf("message 3")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.Contains(t, line, "message "+string(rune('1'+i)))
	}
}

func TestDebugln_WritesToSessionLog(t *testing.T) {
	buf := captureDebug(t)

	// fmt.Sprint only separates operands when neither is a string
	Debugln("value", 42, true)

	assert.Contains(t, buf.String(), "DEBUG: value42 true")
}

func TestDebug_NilSessionWriter(t *testing.T) {
	captureDebug(t)
	sessionLogMu.Lock()
	sessionLogWriter = nil
	sessionLogMu.Unlock()

	assert.NotPanics(t, func() {
		Debugf("no writer %d", 1)
		Debugln("no writer")
	})
}

func TestDebug_DiscardWriter(t *testing.T) {
	captureDebug(t)
	sessionLogMu.Lock()
	sessionLogWriter = io.Discard
	sessionLogMu.Unlock()

	assert.NotPanics(t, func() { Debugf("discarded") })
}

func TestSetDebugEnabled(t *testing.T) {
	captureDebug(t)

	SetDebugEnabled(true)
	assert.True(t, debugEnabled)

	SetDebugEnabled(false)
	assert.False(t, debugEnabled)
}
