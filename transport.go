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
	"errors"
	"time"

	"github.com/ZaparooProject/go-oemipmi/internal/syncutil"
)

// Transport defines the command-queue collaborator that carries requests to
// the management controller. This can be implemented by D-Bus, serial
// terminal mode, SSIF or the kernel IPMI device.
type Transport interface {
	// Execute sends a request and blocks until the reply arrives or ctx ends
	Execute(ctx context.Context, req *Request) (*Response, error)

	// Close closes the transport connection
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportDBus represents the host IPMI daemon queue on the system bus.
	TransportDBus TransportType = "dbus"
	// TransportSerial represents IPMI serial terminal mode.
	TransportSerial TransportType = "serial"
	// TransportSSIF represents the SMBus system interface over I2C.
	TransportSSIF TransportType = "ssif"
	// TransportDevIPMI represents the Linux OpenIPMI character device.
	TransportDevIPMI TransportType = "devipmi"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

type commandKey struct {
	netFn byte
	cmd   byte
}

// MockTransport provides a mock implementation of Transport for testing
type MockTransport struct {
	responses map[commandKey]*Response
	errorMap  map[commandKey]error
	callCount map[commandKey]int
	requests  []Request
	delay     time.Duration
	mu        syncutil.RWMutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		responses: make(map[commandKey]*Response),
		errorMap:  make(map[commandKey]error),
		callCount: make(map[commandKey]int),
	}
}

// Execute implements Transport interface
func (m *MockTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return nil, errors.New("transport not connected")
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	key := commandKey{netFn: req.NetFn, cmd: req.Cmd}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount[key]++
	m.requests = append(m.requests, Request{
		NetFn: req.NetFn,
		LUN:   req.LUN,
		Cmd:   req.Cmd,
		Data:  append([]byte(nil), req.Data...),
	})

	if err, exists := m.errorMap[key]; exists {
		return nil, err
	}

	if resp, exists := m.responses[key]; exists {
		cp := *resp
		cp.Data = append([]byte(nil), resp.Data...)
		return &cp, nil
	}

	// Default: success with no data
	return &Response{NetFn: req.NetFn | 0x01, LUN: req.LUN, Cmd: req.Cmd}, nil
}

// Close implements Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// Type implements Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// SetResponse configures the reply data for a command with a success completion code
func (m *MockTransport) SetResponse(netFn, cmd byte, data []byte) {
	m.SetReply(netFn, cmd, CompletionOK, data)
}

// SetReply configures the full reply for a command
func (m *MockTransport) SetReply(netFn, cmd, completionCode byte, data []byte) {
	m.mu.Lock()
	m.responses[commandKey{netFn: netFn, cmd: cmd}] = &Response{
		NetFn:          netFn | 0x01,
		Cmd:            cmd,
		CompletionCode: completionCode,
		Data:           append([]byte{}, data...),
	}
	m.mu.Unlock()
}

// SetError configures an error to be returned for a specific command
func (m *MockTransport) SetError(netFn, cmd byte, err error) {
	m.mu.Lock()
	m.errorMap[commandKey{netFn: netFn, cmd: cmd}] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a command
func (m *MockTransport) ClearError(netFn, cmd byte) {
	m.mu.Lock()
	delete(m.errorMap, commandKey{netFn: netFn, cmd: cmd})
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate round-trip latency
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times a command was executed
func (m *MockTransport) GetCallCount(netFn, cmd byte) int {
	m.mu.RLock()
	count := m.callCount[commandKey{netFn: netFn, cmd: cmd}]
	m.mu.RUnlock()
	return count
}

// Requests returns a copy of every request seen, in order
func (m *MockTransport) Requests() []Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Request(nil), m.requests...)
}

// Reset clears all call counts and resets state
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.callCount = make(map[commandKey]int)
	m.requests = nil
	m.connected = true
	m.mu.Unlock()
}

// Simulator answers commands the way a management controller would
type Simulator interface {
	Handle(netFn, cmd byte, data []byte) (completionCode byte, reply []byte)
}

// SimulatorTransport adapts a Simulator to the Transport interface
type SimulatorTransport struct {
	sim    Simulator
	mu     syncutil.Mutex
	closed bool
}

// NewSimulatorTransport creates a transport backed by sim
func NewSimulatorTransport(sim Simulator) *SimulatorTransport {
	return &SimulatorTransport{sim: sim}
}

// Execute implements Transport interface
func (t *SimulatorTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrTransportClosed
	}

	cc, data := t.sim.Handle(req.NetFn, req.Cmd, req.Data)
	return &Response{
		NetFn:          req.NetFn | 0x01,
		LUN:            req.LUN,
		Cmd:            req.Cmd,
		CompletionCode: cc,
		Data:           data,
	}, nil
}

// Close implements Transport interface
func (t *SimulatorTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Type implements Transport interface
func (*SimulatorTransport) Type() TransportType {
	return TransportMock
}
