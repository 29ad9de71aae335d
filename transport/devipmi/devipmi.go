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

// Package devipmi provides a transport over the Linux OpenIPMI character
// device, for tools running on the managed host or on the BMC itself
package devipmi

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/internal/syncutil"
)

const (
	// DefaultPath is the first OpenIPMI interface
	DefaultPath = "/dev/ipmi0"

	// DefaultTimeout bounds a round trip when ctx has no deadline
	DefaultTimeout = 5 * time.Second

	// Addressing of the local BMC through the system interface
	systemInterfaceAddrType = 0x0c
	bmcChannel              = 0x0f
	responseRecvType        = 1

	maxMessageLength = 1024
)

// Transport implements the oemipmi.Transport interface for /dev/ipmiN
type Transport struct {
	path    string
	timeout time.Duration
	fd      int
	msgID   int
	mu      syncutil.Mutex
	closed  bool
}

// SetTimeout sets the round trip bound used when ctx has no deadline
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.mu.Lock()
	t.timeout = timeout
	t.mu.Unlock()
}

// Type returns the transport type
func (*Transport) Type() oemipmi.TransportType {
	return oemipmi.TransportDevIPMI
}

// Path returns the device node the transport was opened on
func (t *Transport) Path() string {
	return t.path
}

// decodeReply builds a response from a received message. The first data
// byte of every response is its completion code.
func decodeReply(req *oemipmi.Request, netFn, cmd byte, data []byte, path string) (*oemipmi.Response, error) {
	if len(data) < 1 {
		return nil, oemipmi.NewFrameCorruptedError("receive", path)
	}
	resp := &oemipmi.Response{
		NetFn:          netFn,
		LUN:            req.LUN,
		Cmd:            cmd,
		CompletionCode: data[0],
		Data:           append([]byte{}, data[1:]...),
	}
	if netFn != req.NetFn|0x01 || cmd != req.Cmd {
		return nil, &oemipmi.TransportError{
			Op:   "receive",
			Port: path,
			Err: fmt.Errorf("%w: reply netfn 0x%02X cmd 0x%02X for netfn 0x%02X cmd 0x%02X",
				oemipmi.ErrInvalidResponse, netFn, cmd, req.NetFn, req.Cmd),
			Type: oemipmi.ErrorTypePermanent,
		}
	}
	return resp, nil
}
