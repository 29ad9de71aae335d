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
)

// Bridge turns byte-encoded command frames into structured replies over a
// Transport. It is the only point of contact between the inventory pipeline
// and the outside world. A Bridge holds no per-call state and may be shared.
type Bridge struct {
	transport Transport
	lun       byte
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithLUN sets the logical unit used for every request (default 0)
func WithLUN(lun byte) BridgeOption {
	return func(b *Bridge) {
		b.lun = lun & 0x03
	}
}

// NewBridge creates a bridge over the given transport
func NewBridge(transport Transport, opts ...BridgeOption) *Bridge {
	b := &Bridge{transport: transport}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Transport returns the underlying transport
func (b *Bridge) Transport() Transport {
	return b.transport
}

// Exchange sends a frame and returns the full decoded reply.
// Frames shorter than 2 bytes are rejected without dispatch.
func (b *Bridge) Exchange(ctx context.Context, frame Frame) (*Response, error) {
	if len(frame) < minFrameLength {
		Debugln("bridge: request data length invalid")
		return nil, ErrShortFrame
	}

	req := &Request{
		NetFn: frame.NetFn(),
		LUN:   b.lun,
		Cmd:   frame.Cmd(),
		Data:  frame.Data(),
	}

	resp, err := b.transport.Execute(ctx, req)
	if err != nil {
		Debugf("bridge: bus error netfn=0x%02X lun=0x%02X cmd=0x%02X: %v", req.NetFn, req.LUN, req.Cmd, err)
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransportError{
			Op:   "Execute",
			Port: string(b.transport.Type()),
			Err:  err,
			Type: ErrorTypePermanent,
		}
	}
	if resp == nil {
		return nil, NewInvalidResponseError("Execute", string(b.transport.Type()))
	}

	if resp.CompletionCode != CompletionOK {
		Debugf("bridge: netfn=0x%02X cmd=0x%02X non-zero completion code 0x%02X",
			req.NetFn, req.Cmd, resp.CompletionCode)
		return resp, &CompletionError{NetFn: req.NetFn, Cmd: req.Cmd, Code: resp.CompletionCode}
	}

	return resp, nil
}

// Send sends a frame and returns the reply payload with the addressing and
// completion bytes stripped. On any failure the payload is nil and the
// error satisfies errors.Is(err, ErrTransportFailure) unless the frame was
// rejected as too short.
func (b *Bridge) Send(ctx context.Context, frame Frame) ([]byte, error) {
	resp, err := b.Exchange(ctx, frame)
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []byte{}, nil
	}
	return resp.Data, nil
}
