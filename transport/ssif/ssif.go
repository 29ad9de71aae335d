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

// Package ssif provides the SMBus System Interface transport for management
// controllers reachable over an I2C bus
package ssif

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/internal/frame"
	"github.com/ZaparooProject/go-oemipmi/internal/syncutil"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the 7-bit SMBus address of the BMC SSIF interface
	DefaultAddress = 0x10

	// SMBus commands
	smbusSingleWrite      = 0x02
	smbusSingleRead       = 0x03
	smbusMultiWriteStart  = 0x06
	smbusMultiWriteMiddle = 0x07
	smbusMultiWriteEnd    = 0x08
	smbusReadMiddle       = 0x09

	// maxBlock is the SMBus block size limit
	maxBlock = 32

	// Multi-part read markers
	multiReadStart0 = 0x00
	multiReadStart1 = 0x01
	lastBlock       = 0xFF

	maxClockFreq = 100 * physic.KiloHertz

	defaultTimeout      = 2 * time.Second
	defaultPollInterval = 5 * time.Millisecond
	maxReadBlocks       = 64
)

// ErrBlockSequence is returned when a multi-part read skips a block
var ErrBlockSequence = errors.New("ssif: multi-part read out of sequence")

// Transport implements the oemipmi.Transport interface for SSIF
type Transport struct {
	dev          *i2c.Dev
	bus          i2c.BusCloser // Held so Close() can release the OS file descriptor
	currentTrace *oemipmi.TraceBuffer
	busName      string
	timeout      time.Duration
	pollInterval time.Duration
	mu           syncutil.Mutex
}

// traceTX records a TX operation if trace buffer is active
func (t *Transport) traceTX(data []byte, note string) {
	if t.currentTrace != nil {
		t.currentTrace.RecordTX(data, note)
	}
}

// traceRX records an RX operation if trace buffer is active
func (t *Transport) traceRX(data []byte, note string) {
	if t.currentTrace != nil {
		t.currentTrace.RecordRX(data, note)
	}
}

// ParsePath splits a detection path of the form "/dev/i2c-1:0x10" into the
// bus and address. A bare bus path selects DefaultAddress.
func ParsePath(path string) (bus string, addr uint16, err error) {
	bus, suffix, found := strings.Cut(path, ":")
	if !found || suffix == "" {
		return bus, DefaultAddress, nil
	}
	v, err := strconv.ParseUint(suffix, 0, 7)
	if err != nil {
		return "", 0, fmt.Errorf("%w: SSIF address %q", oemipmi.ErrInvalidParameter, suffix)
	}
	return bus, uint16(v), nil
}

// New opens the SSIF interface described by path
func New(path string) (*Transport, error) {
	busName, addr, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}
	_ = bus.SetSpeed(maxClockFreq) // Ignore error, continue with default speed

	return newTransport(bus, addr, path), nil
}

func newTransport(bus i2c.BusCloser, addr uint16, name string) *Transport {
	return &Transport{
		dev:          &i2c.Dev{Addr: addr, Bus: bus},
		bus:          bus,
		busName:      name,
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
	}
}

// SetTimeout sets how long Execute waits for the response to become readable
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.mu.Lock()
	t.timeout = timeout
	t.mu.Unlock()
}

// Execute writes the request and polls for the response
//
//nolint:wrapcheck // WrapError intentionally wraps errors with trace data
func (t *Transport) Execute(ctx context.Context, req *oemipmi.Request) (*oemipmi.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil, oemipmi.NewTransportError("Execute", t.busName, oemipmi.ErrTransportClosed, oemipmi.ErrorTypePermanent)
	}

	// Create trace buffer for this command (only used on error)
	t.currentTrace = oemipmi.NewTraceBuffer("SSIF", t.busName, 16)
	defer func() { t.currentTrace = nil }()

	if err := t.writeMessage(frame.EncodeRequest(req)); err != nil {
		return nil, t.currentTrace.WrapError(err)
	}

	body, err := t.readMessage(ctx)
	if err != nil {
		return nil, t.currentTrace.WrapError(err)
	}

	resp, err := frame.DecodeReply(req, body, "Execute", t.busName)
	if err != nil {
		return nil, t.currentTrace.WrapError(err)
	}
	return resp, nil
}

// writeMessage sends msg as one SMBus block write, or as a start, middle
// and end sequence when it exceeds one block
func (t *Transport) writeMessage(msg []byte) error {
	if len(msg) <= maxBlock {
		return t.blockWrite(smbusSingleWrite, msg)
	}

	for off := 0; off < len(msg); off += maxBlock {
		end := min(off+maxBlock, len(msg))
		cmd := byte(smbusMultiWriteMiddle)
		switch {
		case off == 0:
			cmd = smbusMultiWriteStart
		case end == len(msg):
			cmd = smbusMultiWriteEnd
		}
		if err := t.blockWrite(cmd, msg[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) blockWrite(cmd byte, chunk []byte) error {
	w := make([]byte, 0, 2+len(chunk))
	w = append(w, cmd, byte(len(chunk)))
	w = append(w, chunk...)

	t.traceTX(w, fmt.Sprintf("SMBus 0x%02X", cmd))
	if err := t.dev.Tx(w, nil); err != nil {
		return oemipmi.NewTransportError("write", t.busName,
			fmt.Errorf("%w: %w", oemipmi.ErrTransportWrite, err), oemipmi.ErrorTypeTransient)
	}
	return nil
}

// blockRead issues an SMBus block read and returns the block payload
func (t *Transport) blockRead(cmd byte) ([]byte, error) {
	r := make([]byte, 1+maxBlock)
	if err := t.dev.Tx([]byte{cmd}, r); err != nil {
		return nil, err
	}
	n := int(r[0])
	if n == 0 || n > maxBlock {
		return nil, oemipmi.NewFrameCorruptedError("read", t.busName)
	}
	t.traceRX(r[:1+n], fmt.Sprintf("SMBus 0x%02X", cmd))
	return r[1 : 1+n], nil
}

// readMessage polls for the response. The controller NAKs the read until
// the response is ready.
func (t *Transport) readMessage(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)

	var first []byte
	for {
		block, err := t.blockRead(smbusSingleRead)
		if err == nil {
			first = block
			break
		}
		if errors.Is(err, oemipmi.ErrFrameCorrupted) {
			return nil, err
		}
		if time.Now().After(deadline) {
			t.currentTrace.RecordTimeout("response not ready")
			return nil, oemipmi.NewTimeoutError("read", t.busName)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}

	if len(first) < maxBlock || first[0] != multiReadStart0 || first[1] != multiReadStart1 {
		return append([]byte(nil), first...), nil
	}

	msg := append([]byte(nil), first[2:]...)
	for want := 0; want < maxReadBlocks; want++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block, err := t.blockRead(smbusReadMiddle)
		if err != nil {
			var te *oemipmi.TransportError
			if errors.As(err, &te) {
				return nil, err
			}
			return nil, oemipmi.NewTransportError("read", t.busName,
				fmt.Errorf("%w: %w", oemipmi.ErrTransportRead, err), oemipmi.ErrorTypeTransient)
		}
		msg = append(msg, block[1:]...)
		switch block[0] {
		case lastBlock:
			return msg, nil
		case byte(want):
		default:
			return nil, oemipmi.NewTransportError("read", t.busName,
				fmt.Errorf("%w: block %d, want %d", ErrBlockSequence, block[0], want), oemipmi.ErrorTypeTransient)
		}
	}
	return nil, oemipmi.NewFrameCorruptedError("read", t.busName)
}

// Close releases the I2C bus
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bus != nil {
		if err := t.bus.Close(); err != nil {
			return fmt.Errorf("failed to close I2C bus: %w", err)
		}
		t.bus = nil
		t.dev = nil
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() oemipmi.TransportType {
	return oemipmi.TransportSSIF
}
