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

// Package dbus provides a transport that hands requests to the host IPMI
// daemon over the system bus
package dbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/internal/syncutil"
	godbus "github.com/godbus/dbus/v5"
)

const (
	// DefaultService is the well-known name of the IPMI host daemon
	DefaultService = "xyz.openbmc_project.Ipmi.Host"
	// DefaultObjectPath is the object exposing the execute method
	DefaultObjectPath godbus.ObjectPath = "/xyz/openbmc_project/Ipmi"
	// ExecuteMethod takes (netfn, lun, cmd, data, options) and replies
	// (netfn, lun, cmd, cc, data)
	ExecuteMethod = "xyz.openbmc_project.Ipmi.Server.execute"
)

// busObject is the subset of godbus.BusObject the transport calls
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags godbus.Flags, args ...any) *godbus.Call
}

// Transport implements the oemipmi.Transport interface over D-Bus
type Transport struct {
	conn    *godbus.Conn
	obj     busObject
	service string
	mu      syncutil.Mutex
	closed  bool
}

// Option configures a Transport
type Option func(*config)

type config struct {
	retry   *oemipmi.RetryConfig
	dial    func(ctx context.Context) (*godbus.Conn, error)
	service string
	path    godbus.ObjectPath
}

func dialSystemBus(ctx context.Context) (*godbus.Conn, error) {
	return godbus.ConnectSystemBus(godbus.WithContext(ctx))
}

// WithService overrides the daemon's bus name
func WithService(name string) Option {
	return func(c *config) { c.service = name }
}

// WithObjectPath overrides the object path
func WithObjectPath(path godbus.ObjectPath) Option {
	return func(c *config) { c.path = path }
}

// WithRetry sets the backoff used while the system bus or the daemon is not
// yet reachable
func WithRetry(rc *oemipmi.RetryConfig) Option {
	return func(c *config) { c.retry = rc }
}

// New connects to the system bus and resolves the IPMI daemon object
func New(ctx context.Context, opts ...Option) (*Transport, error) {
	cfg := config{
		service: DefaultService,
		path:    DefaultObjectPath,
		retry:   oemipmi.DefaultRetryConfig(),
		dial:    dialSystemBus,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var conn *godbus.Conn
	err := oemipmi.RetryWithConfig(ctx, cfg.retry, func() error {
		c, dialErr := cfg.dial(ctx)
		if dialErr != nil {
			oemipmi.Debugf("dbus: system bus not reachable: %v", dialErr)
			return fmt.Errorf("%w: %w", oemipmi.NewTransportNotReadyError("connect", cfg.service), dialErr)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	t := newTransport(conn.Object(cfg.service, cfg.path), cfg.service)
	t.conn = conn
	return t, nil
}

func newTransport(obj busObject, service string) *Transport {
	return &Transport{obj: obj, service: service}
}

// Execute calls the daemon's execute method and decodes its reply
func (t *Transport) Execute(ctx context.Context, req *oemipmi.Request) (*oemipmi.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, oemipmi.NewTransportError("Execute", t.service, oemipmi.ErrTransportClosed, oemipmi.ErrorTypePermanent)
	}

	data := req.Data
	if data == nil {
		data = []byte{}
	}

	call := t.obj.CallWithContext(ctx, ExecuteMethod, 0,
		req.NetFn, req.LUN, req.Cmd, data, map[string]godbus.Variant{})
	if call.Err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyCallError(t.service, call.Err)
	}

	var resp oemipmi.Response
	var payload []byte
	if err := call.Store(&resp.NetFn, &resp.LUN, &resp.Cmd, &resp.CompletionCode, &payload); err != nil {
		return nil, oemipmi.NewTransportError("execute", t.service,
			fmt.Errorf("%w: %w", oemipmi.ErrInvalidResponse, err), oemipmi.ErrorTypePermanent)
	}
	if payload == nil {
		payload = []byte{}
	}
	resp.Data = payload
	return &resp, nil
}

// classifyCallError separates a missing daemon (retryable) from method errors
func classifyCallError(service string, err error) error {
	var dbusErr godbus.Error
	if errors.As(err, &dbusErr) {
		switch dbusErr.Name {
		case "org.freedesktop.DBus.Error.ServiceUnknown",
			"org.freedesktop.DBus.Error.NoReply",
			"org.freedesktop.DBus.Error.Timeout":
			return oemipmi.NewTransportError("execute", service,
				fmt.Errorf("%w: %s", oemipmi.ErrTransportNotReady, dbusErr.Name), oemipmi.ErrorTypeTimeout)
		}
	}
	return oemipmi.NewTransportError("execute", service,
		fmt.Errorf("%w: %w", oemipmi.ErrTransportRead, err), oemipmi.ErrorTypePermanent)
}

// Close releases the bus connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			return fmt.Errorf("failed to close system bus connection: %w", err)
		}
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() oemipmi.TransportType {
	return oemipmi.TransportDBus
}
