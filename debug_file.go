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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-oemipmi/internal/syncutil"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Session log state
var (
	sessionLogFile   *lumberjack.Logger
	sessionLogPath   string
	sessionLogWriter io.Writer
	sessionLogMu     syncutil.Mutex
)

// SessionLogOptions configures the rotating session log
type SessionLogOptions struct {
	// Dir is the directory for the log file (current directory if empty)
	Dir string
	// Name overrides the generated oemipmi_YYYYMMDD_HHMMSS.log file name
	Name string
	// MaxSizeMB is the size at which the log is rotated
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept
	MaxBackups int
	// MaxAgeDays is how long rotated files are kept
	MaxAgeDays int
	// Compress gzips rotated files
	Compress bool
}

// DefaultSessionLogOptions returns default rotation settings
func DefaultSessionLogOptions() *SessionLogOptions {
	return &SessionLogOptions{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}

// InitSessionLog opens a rotating session log file.
// Returns the log file path for display to the user.
func InitSessionLog(opts *SessionLogOptions) (string, error) {
	if opts == nil {
		opts = DefaultSessionLogOptions()
	}

	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("oemipmi_%s.log", time.Now().Format("20060102_150405"))
	}
	path := name
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create session log dir: %w", err)
		}
		path = filepath.Join(opts.Dir, name)
	}

	logger := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	// Write session header; this also creates the file
	if err := writeSessionHeader(logger); err != nil {
		_ = logger.Close()
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sessionLogMu.Lock()
	sessionLogFile = logger
	sessionLogPath = path
	sessionLogWriter = logger
	sessionLogMu.Unlock()

	return path, nil
}

// CloseSessionLog closes the current session log file.
func CloseSessionLog() error {
	sessionLogMu.Lock()
	defer sessionLogMu.Unlock()

	if sessionLogFile == nil {
		return nil
	}

	timestamp := time.Now().Format("15:04:05.000")
	_, _ = fmt.Fprintf(sessionLogWriter, "\n%s === Session ended ===\n", timestamp)

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the current session log file path.
func GetSessionLogPath() string {
	sessionLogMu.Lock()
	defer sessionLogMu.Unlock()
	return sessionLogPath
}

// writeSessionHeader writes metadata about the session to the log file.
func writeSessionHeader(writer io.Writer) error {
	var sb strings.Builder
	_, _ = sb.WriteString("=== OEM IPMI Debug Session Log ===\n")
	_, _ = fmt.Fprintf(&sb, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&sb, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(&sb, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&sb, "Go Version: %s\n", runtime.Version())
	if exe, err := os.Executable(); err == nil {
		_, _ = fmt.Fprintf(&sb, "Executable: %s\n", exe)
	}
	_, _ = fmt.Fprintf(&sb, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = sb.WriteString("===================================\n\n")

	_, err := io.WriteString(writer, sb.String())
	return err
}
