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

// Package serial provides the IPMI serial terminal mode transport. Messages
// are exchanged as bracketed lines of ASCII hex:
//
//	request:  [NetFn/LUN Seq/Bridge Cmd Data...]
//	response: [NetFn/LUN Seq/Bridge Cmd CompletionCode Data...]
package serial

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/internal/frame"
	"github.com/ZaparooProject/go-oemipmi/internal/syncutil"
	bugst "go.bug.st/serial"
)

const (
	// DefaultBaudRate is the terminal mode rate most controllers ship with
	DefaultBaudRate = 115200

	// DefaultResponseTimeout bounds a round trip when ctx has no deadline
	DefaultResponseTimeout = 2 * time.Second

	readPollInterval = 50 * time.Millisecond
	maxLineLength    = 3*(frame.MinReplyLength+1+oemipmi.DefaultMaxReadCount) + 2
	seqMask          = 0x3F
	bridgeMask       = 0x03

	lineStart = '['
	lineEnd   = ']'
)

// ErrLineTooLong is returned when a response line exceeds the largest
// message terminal mode can carry
var ErrLineTooLong = errors.New("terminal mode line too long")

// Transport implements the oemipmi.Transport interface for serial terminal mode
type Transport struct {
	port            bugst.Port
	currentTrace    *oemipmi.TraceBuffer
	portName        string
	pending         []byte
	responseTimeout time.Duration
	mu              syncutil.Mutex
	seq             byte
	bridge          byte
}

// Option configures a Transport
type Option func(*Transport)

// WithResponseTimeout sets the round trip bound used when ctx has no deadline
func WithResponseTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.responseTimeout = d
		}
	}
}

// WithBridge sets the bridge field carried in the Seq/Bridge byte
func WithBridge(bridge byte) Option {
	return func(t *Transport) {
		t.bridge = bridge & bridgeMask
	}
}

// New opens portName at baud (DefaultBaudRate if zero)
func New(portName string, baud int, opts ...Option) (*Transport, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := bugst.Open(portName, &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readPollInterval); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set serial read timeout: %w", err)
	}
	return newTransport(port, portName, opts...), nil
}

func newTransport(port bugst.Port, portName string, opts ...Option) *Transport {
	t := &Transport{
		port:            port,
		portName:        portName,
		responseTimeout: DefaultResponseTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Execute sends one request line and waits for the matching response line
//
//nolint:wrapcheck // WrapError intentionally wraps errors with trace data
func (t *Transport) Execute(ctx context.Context, req *oemipmi.Request) (*oemipmi.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, oemipmi.NewTransportError("Execute", t.portName, oemipmi.ErrTransportClosed, oemipmi.ErrorTypePermanent)
	}

	t.currentTrace = oemipmi.NewTraceBuffer("serial", t.portName, 16)
	defer func() { t.currentTrace = nil }()

	t.seq = (t.seq + 1) & seqMask
	line := EncodeLine(req, t.seq, t.bridge)

	// Stale bytes from an abandoned exchange would be taken as our reply
	t.pending = t.pending[:0]
	_ = t.port.ResetInputBuffer()

	t.currentTrace.RecordTX(line, "request")
	if _, err := t.port.Write(line); err != nil {
		return nil, t.currentTrace.WrapError(
			oemipmi.NewTransportError("write", t.portName, fmt.Errorf("%w: %w", oemipmi.ErrTransportWrite, err),
				oemipmi.ErrorTypeTransient))
	}

	deadline := time.Now().Add(t.responseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		reply, err := t.readLine(ctx, deadline)
		if err != nil {
			return nil, t.currentTrace.WrapError(err)
		}
		t.currentTrace.RecordRX(reply, "response")

		resp, seq, err := DecodeLine(req, reply, t.portName)
		if err != nil {
			return nil, t.currentTrace.WrapError(err)
		}
		if seq != t.seq {
			oemipmi.Debugf("serial: dropping reply with sequence %d, want %d", seq, t.seq)
			continue
		}
		return resp, nil
	}
}

// readLine returns the next bracketed line, excluding anything outside the brackets
func (t *Transport) readLine(ctx context.Context, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 64)
	for {
		if start := bytes.IndexByte(t.pending, lineStart); start >= 0 {
			if end := bytes.IndexByte(t.pending[start:], lineEnd); end >= 0 {
				line := append([]byte(nil), t.pending[start:start+end+1]...)
				t.pending = append(t.pending[:0], t.pending[start+end+1:]...)
				return line, nil
			}
			if len(t.pending)-start > maxLineLength {
				t.pending = t.pending[:0]
				return nil, oemipmi.NewTransportError("read", t.portName, ErrLineTooLong, oemipmi.ErrorTypePermanent)
			}
		} else {
			t.pending = t.pending[:0]
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			t.currentTrace.RecordTimeout("no response line")
			return nil, oemipmi.NewTimeoutError("read", t.portName)
		}

		n, err := t.port.Read(buf)
		if err != nil {
			return nil, oemipmi.NewTransportError("read", t.portName,
				fmt.Errorf("%w: %w", oemipmi.ErrTransportRead, err), oemipmi.ErrorTypeTransient)
		}
		t.pending = append(t.pending, buf[:n]...)
	}
}

// EncodeLine formats req as a terminal mode request line
func EncodeLine(req *oemipmi.Request, seq, bridge byte) []byte {
	body := frame.EncodeRequest(req)
	raw := make([]byte, 0, len(body)+1)
	raw = append(raw, body[0], seq<<2|bridge&bridgeMask)
	raw = append(raw, body[1:]...)

	var sb strings.Builder
	_ = sb.WriteByte(lineStart)
	for i, b := range raw {
		if i > 0 {
			_ = sb.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&sb, "%02X", b)
	}
	_, _ = sb.WriteString("]\r")
	return []byte(sb.String())
}

// DecodeLine parses a terminal mode response line and returns the reply
// together with the sequence number it carried
func DecodeLine(req *oemipmi.Request, line []byte, port string) (*oemipmi.Response, byte, error) {
	line = bytes.TrimSpace(line)
	if len(line) < 2 || line[0] != lineStart || line[len(line)-1] != lineEnd {
		return nil, 0, oemipmi.NewFrameCorruptedError("decode", port)
	}

	digits := make([]byte, 0, len(line))
	for _, c := range line[1 : len(line)-1] {
		if c != ' ' {
			digits = append(digits, c)
		}
	}
	raw := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(raw, digits); err != nil || len(digits)%2 != 0 {
		return nil, 0, oemipmi.NewFrameCorruptedError("decode", port)
	}
	if len(raw) < frame.MinReplyLength+1 {
		return nil, 0, oemipmi.NewFrameCorruptedError("decode", port)
	}

	seq := raw[1] >> 2
	body := append([]byte{raw[0]}, raw[2:]...)
	resp, err := frame.DecodeReply(req, body, "decode", port)
	if err != nil {
		return nil, seq, err
	}
	return resp, seq, nil
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("serial close failed: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() oemipmi.TransportType {
	return oemipmi.TransportSerial
}

// PortName returns the device path the transport was opened on
func (t *Transport) PortName() string {
	return t.portName
}
