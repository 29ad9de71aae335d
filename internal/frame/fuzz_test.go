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

package frame

import (
	"testing"

	"github.com/ZaparooProject/go-oemipmi"
)

// Run with: go test -fuzz=FuzzDecodeReply -fuzztime=30s ./internal/frame/

// FuzzDecodeReply feeds arbitrary reply bytes to the decoder. Malformed
// replies from a misbehaving controller must produce errors, not panics.
func FuzzDecodeReply(f *testing.F) {
	f.Add([]byte{0x2C, 0x10, 0x00, 0x00, 0x01, 0x00}, byte(0x0A), byte(0x10))
	f.Add([]byte{0x2C, 0x11, 0xC9}, byte(0x0A), byte(0x11))
	f.Add([]byte{0xD4, 0x10, 0x00, 0x00, 0x1B, 0x44, 0x11, 0x3A, 0xB7}, byte(0x34), byte(0x10))
	f.Add([]byte{}, byte(0x06), byte(0x01))
	f.Add([]byte{0xFF}, byte(0x00), byte(0x00))

	f.Fuzz(func(t *testing.T, buf []byte, netFn, cmd byte) {
		req := &oemipmi.Request{NetFn: netFn & 0x3F, Cmd: cmd}
		resp, err := DecodeReply(req, buf, "fuzz", "")
		if err != nil {
			return
		}
		if len(resp.Data) != len(buf)-MinReplyLength {
			t.Fatalf("decoded %d data bytes from %d byte reply", len(resp.Data), len(buf))
		}
		if resp.Cmd != cmd {
			t.Fatalf("accepted reply for cmd 0x%02X as 0x%02X", resp.Cmd, cmd)
		}
	})
}
