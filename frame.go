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

import "fmt"

// Frame is a byte-encoded command: [netFn, cmd, data...].
// Frames are built fresh for every call and never mutated after construction.
type Frame []byte

// minFrameLength is the netFn and command byte every frame must carry.
const minFrameLength = 2

// NewFrame builds a frame from a network function, command code and payload
func NewFrame(netFn, cmd byte, data ...byte) Frame {
	f := make(Frame, 0, minFrameLength+len(data))
	f = append(f, netFn, cmd)
	return append(f, data...)
}

// NetFn returns the network function byte, or 0 for a short frame
func (f Frame) NetFn() byte {
	if len(f) < 1 {
		return 0
	}
	return f[0]
}

// Cmd returns the command byte, or 0 for a short frame
func (f Frame) Cmd() byte {
	if len(f) < minFrameLength {
		return 0
	}
	return f[1]
}

// Data returns a copy of the payload bytes following netFn and cmd
func (f Frame) Data() []byte {
	if len(f) <= minFrameLength {
		return []byte{}
	}
	return append([]byte(nil), f[minFrameLength:]...)
}

// String formats the frame for debug output
func (f Frame) String() string {
	return fmt.Sprintf("netfn=0x%02X cmd=0x%02X data=[%s]", f.NetFn(), f.Cmd(), formatHexBytes(f.Data()))
}

// Request is the structured form of a frame handed to a Transport.
type Request struct {
	Data  []byte
	NetFn byte
	LUN   byte
	Cmd   byte
}

// Response is the decoded reply from the command queue.
type Response struct {
	Data           []byte
	NetFn          byte
	LUN            byte
	Cmd            byte
	CompletionCode byte
}

// OK reports whether the completion code signals success
func (r *Response) OK() bool {
	return r != nil && r.CompletionCode == CompletionOK
}
