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

// Package frame holds the message layout shared by the byte-stream
// transports: the packed netFn/LUN byte, the request body and the
// [netFn/LUN, cmd, completion code, data...] reply body.
package frame

import (
	"fmt"

	"github.com/ZaparooProject/go-oemipmi"
)

// Size limits
const (
	MinReplyLength   = 3 // netFn/LUN + cmd + completion code
	MinRequestLength = 2 // netFn/LUN + cmd
)

// PackNetFnLUN combines a network function and LUN into one byte
func PackNetFnLUN(netFn, lun byte) byte {
	return netFn<<2 | lun&0x03
}

// UnpackNetFnLUN splits a packed netFn/LUN byte
func UnpackNetFnLUN(b byte) (netFn, lun byte) {
	return b >> 2, b & 0x03
}

// ResponseNetFn returns the response network function for a request netFn
func ResponseNetFn(netFn byte) byte {
	return netFn | 0x01
}

// EncodeRequest builds [netFn/LUN, cmd, data...]
func EncodeRequest(req *oemipmi.Request) []byte {
	buf := make([]byte, 0, MinRequestLength+len(req.Data))
	buf = append(buf, PackNetFnLUN(req.NetFn, req.LUN), req.Cmd)
	return append(buf, req.Data...)
}

// DecodeReply parses [netFn/LUN, cmd, completion code, data...] and checks
// that it answers req
func DecodeReply(req *oemipmi.Request, buf []byte, op, port string) (*oemipmi.Response, error) {
	if len(buf) < MinReplyLength {
		return nil, oemipmi.NewFrameCorruptedError(op, port)
	}

	netFn, lun := UnpackNetFnLUN(buf[0])
	resp := &oemipmi.Response{
		NetFn:          netFn,
		LUN:            lun,
		Cmd:            buf[1],
		CompletionCode: buf[2],
		Data:           append([]byte{}, buf[3:]...),
	}

	if err := Matches(req, resp); err != nil {
		return nil, &oemipmi.TransportError{
			Op:   op,
			Port: port,
			Err:  fmt.Errorf("%w: %w", oemipmi.ErrInvalidResponse, err),
			Type: oemipmi.ErrorTypePermanent,
		}
	}
	return resp, nil
}

// Matches checks that resp carries the response netFn and command of req
func Matches(req *oemipmi.Request, resp *oemipmi.Response) error {
	if resp.NetFn != ResponseNetFn(req.NetFn) {
		return fmt.Errorf("reply netfn 0x%02X for request netfn 0x%02X", resp.NetFn, req.NetFn)
	}
	if resp.Cmd != req.Cmd {
		return fmt.Errorf("reply cmd 0x%02X for request cmd 0x%02X", resp.Cmd, req.Cmd)
	}
	return nil
}
