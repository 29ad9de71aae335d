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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-oemipmi/pkg/fru"
)

// Error categories for the inventory pipeline and its transports
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")

	// Bridge errors
	ErrShortFrame       = errors.New("command frame shorter than 2 bytes")
	ErrTransportFailure = errors.New("command bridge round trip failed")
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrInvalidResponse  = errors.New("invalid response format")

	// Inventory pipeline errors - never retried
	ErrDeviceAbsent        = errors.New("FRU device absent")
	ErrHeaderRead          = errors.New("FRU header read failed")
	ErrAreaRead            = errors.New("FRU area read failed")
	ErrFieldEmpty          = fru.ErrFieldEmpty
	ErrFieldNotFound       = fru.ErrFieldNotFound
	ErrLengthMismatch      = errors.New("value length does not match FRU field length")
	ErrWriteVerifyMismatch = errors.New("FRU written length does not match value length")

	// Platform errors
	ErrUnsupportedPlatform = errors.New("platform not supported")
	ErrInvalidParameter    = errors.New("invalid parameter")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets callers match any transport error against ErrTransportFailure
func (*TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}

// Completion codes
const (
	CompletionOK                    byte = 0x00
	CompletionFRUDataError          byte = 0x21
	CompletionFRUDeviceBusy         byte = 0x81
	CompletionNodeBusy              byte = 0xC0
	CompletionInvalidCommand        byte = 0xC1
	CompletionTimeout               byte = 0xC3
	CompletionOutOfSpace            byte = 0xC4
	CompletionReqDataTruncated      byte = 0xC6
	CompletionReqDataLenInvalid     byte = 0xC7
	CompletionReqDataLenExceeded    byte = 0xC8
	CompletionParamOutOfRange       byte = 0xC9
	CompletionCannotReturnBytes     byte = 0xCA
	CompletionDataNotPresent        byte = 0xCB
	CompletionInvalidFieldRequest   byte = 0xCC
	CompletionResponseNotProvided   byte = 0xCE
	CompletionDestinationUnavail    byte = 0xD3
	CompletionInsufficientPrivilege byte = 0xD4
	CompletionUnspecified           byte = 0xFF
)

// CompletionError reports a reply whose completion code was non-zero.
type CompletionError struct {
	NetFn byte
	Cmd   byte
	Code  byte
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("netfn 0x%02X cmd 0x%02X completion code 0x%02X (%s)",
		e.NetFn, e.Cmd, e.Code, completionCodeMeaning(e.Code))
}

// Is lets callers match a rejected reply against ErrTransportFailure
func (*CompletionError) Is(target error) bool {
	return target == ErrTransportFailure
}

// Meaning returns the standard description of the completion code
func (e *CompletionError) Meaning() string {
	return completionCodeMeaning(e.Code)
}

// IsBusy returns true if the remote side asked the caller to try again later
func (e *CompletionError) IsBusy() bool {
	return e.Code == CompletionNodeBusy || e.Code == CompletionFRUDeviceBusy || e.Code == CompletionTimeout
}

// completionCodeMeaning returns a human-readable meaning for completion codes
// Codes follow IPMI v2.0 table 5-2
func completionCodeMeaning(code byte) string {
	meanings := map[byte]string{
		CompletionOK:                    "success",
		CompletionFRUDataError:          "FRU data error",
		CompletionFRUDeviceBusy:         "FRU device busy",
		CompletionNodeBusy:              "node busy",
		CompletionInvalidCommand:        "invalid command",
		0xC2:                            "command invalid for LUN",
		CompletionTimeout:               "timeout while processing command",
		CompletionOutOfSpace:            "out of space",
		0xC5:                            "reservation cancelled or invalid",
		CompletionReqDataTruncated:      "request data truncated",
		CompletionReqDataLenInvalid:     "request data length invalid",
		CompletionReqDataLenExceeded:    "request data field length limit exceeded",
		CompletionParamOutOfRange:       "parameter out of range",
		CompletionCannotReturnBytes:     "cannot return number of requested data bytes",
		CompletionDataNotPresent:        "requested sensor, data, or record not present",
		CompletionInvalidFieldRequest:   "invalid data field in request",
		0xCD:                            "command illegal for specified sensor or record type",
		CompletionResponseNotProvided:   "command response could not be provided",
		0xCF:                            "cannot execute duplicated request",
		0xD0:                            "SDR repository in update mode",
		0xD1:                            "device in firmware update mode",
		0xD2:                            "BMC initialization in progress",
		CompletionDestinationUnavail:    "destination unavailable",
		CompletionInsufficientPrivilege: "insufficient privilege level",
		0xD5:                            "command not supported in present state",
		0xD6:                            "command sub-function disabled or unavailable",
		CompletionUnspecified:           "unspecified error",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return "unknown error"
}

// Stage names a step of the inventory access pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageProbed
	StageHeaderRead
	StageAreaLoaded
	StageFieldLocated
	StageExtracted
	StageWritten
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageProbed:
		return "probed"
	case StageHeaderRead:
		return "header-read"
	case StageAreaLoaded:
		return "area-loaded"
	case StageFieldLocated:
		return "field-located"
	case StageExtracted:
		return "extracted"
	case StageWritten:
		return "written"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// AccessError reports where a field get or set pipeline failed.
// Stage is the last stage reached before the failure.
type AccessError struct {
	Err    error
	Op     string
	Stage  Stage
	Index  int
	Device byte
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("FRU %s device %d field %d failed after %s: %v", e.Op, e.Device, e.Index, e.Stage, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.IsBusy()
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrTransportNotReady),
		errors.Is(err, ErrFrameCorrupted):
		return true
	default:
		return false
	}
}

// Error constructors for consistent error creation

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewFrameCorruptedError creates a frame corruption error
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewInvalidResponseError creates an invalid response error (permanent)
func NewInvalidResponseError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrInvalidResponse, ErrorTypePermanent)
}

// NewTransportNotReadyError creates a transport not ready error (timeout)
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportNotReady, ErrorTypeTimeout)
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds wire-level trace data in errors, allowing consumer
// applications to access debug information when operations fail.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the controller
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the controller
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data for debugging.
// Consumer applications can use errors.As() to extract trace information:
//
//	var te *oemipmi.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = sb.WriteString(fmt.Sprintf("[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace)))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		hexData := formatHexBytes(entry.Data)
		if entry.Note != "" {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", direction, hexData, entry.Note))
		} else {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s\n", direction, hexData))
		}
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	if len(data) > 32 {
		parts := make([]string, 32)
		for i := range 32 {
			parts[i] = fmt.Sprintf("%02X", data[i])
		}
		return strings.Join(parts, " ") + fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer collects trace entries during a command operation.
// It uses a fixed-size circular buffer to limit memory usage.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	maxSize   int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(transport, port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries:   make([]TraceEntry, 0, maxSize),
		maxSize:   maxSize,
		transport: transport,
		port:      port,
	}
}

// RecordTX records a transmission to the controller
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records data received from the controller
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

// record adds an entry to the buffer, evicting oldest if full
func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	entry := TraceEntry{
		Direction: dir,
		Data:      dataCopy,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// Entries returns a copy of the recorded entries
func (tb *TraceBuffer) Entries() []TraceEntry {
	return append([]TraceEntry(nil), tb.entries...)
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	return &TraceableError{
		Err:       err,
		Trace:     tb.Entries(),
		Transport: tb.transport,
		Port:      tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
