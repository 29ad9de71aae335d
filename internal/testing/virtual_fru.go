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

package testing

import (
	"sync"
	"time"

	"github.com/ZaparooProject/go-oemipmi/pkg/fru"
)

// Command codes mirrored from the root package to avoid an import cycle
const (
	NetFnStorage               = 0x0A
	CmdGetFruInventoryAreaInfo = 0x10
	CmdReadFruData             = 0x11
	CmdWriteFruData            = 0x12
)

// Completion codes returned by the virtual device
const (
	ccOK                = 0x00
	ccInvalidCommand    = 0xC1
	ccReqDataLenInvalid = 0xC7
	ccParamOutOfRange   = 0xC9
	ccDataNotPresent    = 0xCB
)

// CommandLogEntry records a command handled by the virtual device
type CommandLogEntry struct {
	Timestamp time.Time
	Data      []byte
	NetFn     byte
	Cmd       byte
}

// VirtualFRU simulates a FRU device behind the storage command set:
// Get FRU Inventory Area Info, Read FRU Data and Write FRU Data against an
// in-memory record image.
type VirtualFRU struct {
	failures    map[byte]byte
	reportWrite func(n int) int
	image       []byte
	log         []CommandLogEntry
	writeLimit  int
	mu          sync.Mutex
	DeviceID    byte
	Present     bool
	WordAccess  bool
}

// NewVirtualFRU creates a present device holding a copy of image
func NewVirtualFRU(image []byte) *VirtualFRU {
	return &VirtualFRU{
		image:      append([]byte(nil), image...),
		failures:   make(map[byte]byte),
		writeLimit: -1,
		Present:    true,
	}
}

// NewVirtualBoardFRU creates a device whose record holds only a board area
// built from fields, padded to size bytes
func NewVirtualBoardFRU(size int, fields ...fru.FieldValue) (*VirtualFRU, error) {
	img, err := fru.BuildImage(&fru.BoardArea{Language: 0x19, Fields: fields}, size)
	if err != nil {
		return nil, err
	}
	return NewVirtualFRU(img), nil
}

// Handle executes one storage command and returns the completion code and
// reply data
func (v *VirtualFRU) Handle(netFn, cmd byte, data []byte) (completionCode byte, reply []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.log = append(v.log, CommandLogEntry{
		Timestamp: time.Now(),
		NetFn:     netFn,
		Cmd:       cmd,
		Data:      append([]byte(nil), data...),
	})

	if netFn != NetFnStorage {
		return ccInvalidCommand, nil
	}
	if cc, ok := v.failures[cmd]; ok {
		return cc, nil
	}

	switch cmd {
	case CmdGetFruInventoryAreaInfo:
		return v.inventoryInfo(data)
	case CmdReadFruData:
		return v.read(data)
	case CmdWriteFruData:
		return v.write(data)
	default:
		return ccInvalidCommand, nil
	}
}

func (v *VirtualFRU) addressed(id byte) bool {
	return v.Present && id == v.DeviceID
}

func (v *VirtualFRU) inventoryInfo(data []byte) (byte, []byte) {
	if len(data) != 1 {
		return ccReqDataLenInvalid, nil
	}
	if !v.addressed(data[0]) {
		return ccDataNotPresent, nil
	}
	size := len(v.image)
	access := byte(0)
	if v.WordAccess {
		access = 1
	}
	return ccOK, []byte{byte(size), byte(size >> 8), access}
}

func (v *VirtualFRU) read(data []byte) (byte, []byte) {
	if len(data) != 4 {
		return ccReqDataLenInvalid, nil
	}
	if !v.addressed(data[0]) {
		return ccDataNotPresent, nil
	}
	off := int(data[1]) | int(data[2])<<8
	count := int(data[3])
	if off >= len(v.image) {
		return ccParamOutOfRange, nil
	}
	end := min(off+count, len(v.image))

	reply := make([]byte, 0, 1+end-off)
	reply = append(reply, byte(end-off))
	return ccOK, append(reply, v.image[off:end]...)
}

func (v *VirtualFRU) write(data []byte) (byte, []byte) {
	if len(data) < 4 {
		return ccReqDataLenInvalid, nil
	}
	if !v.addressed(data[0]) {
		return ccDataNotPresent, nil
	}
	off := int(data[1]) | int(data[2])<<8
	payload := data[3:]
	if off+len(payload) > len(v.image) {
		return ccParamOutOfRange, nil
	}
	if v.writeLimit >= 0 && v.writeLimit < len(payload) {
		payload = payload[:v.writeLimit]
	}
	copy(v.image[off:], payload)

	n := len(payload)
	if v.reportWrite != nil {
		n = v.reportWrite(n)
	}
	return ccOK, []byte{byte(n)}
}

// Test helper methods

// Image returns a copy of the current record image
func (v *VirtualFRU) Image() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.image...)
}

// SetImage replaces the record image, as an external writer would
func (v *VirtualFRU) SetImage(image []byte) {
	v.mu.Lock()
	v.image = append([]byte(nil), image...)
	v.mu.Unlock()
}

// FailCommand makes cmd reply with completionCode until cleared
func (v *VirtualFRU) FailCommand(cmd, completionCode byte) {
	v.mu.Lock()
	v.failures[cmd] = completionCode
	v.mu.Unlock()
}

// ClearFailures removes all injected failures
func (v *VirtualFRU) ClearFailures() {
	v.mu.Lock()
	v.failures = make(map[byte]byte)
	v.mu.Unlock()
}

// ReportWritten overrides the written count in Write FRU Data replies.
// fn receives the number of bytes actually written.
func (v *VirtualFRU) ReportWritten(fn func(n int) int) {
	v.mu.Lock()
	v.reportWrite = fn
	v.mu.Unlock()
}

// LimitWrites truncates every write to at most n bytes (negative disables)
func (v *VirtualFRU) LimitWrites(n int) {
	v.mu.Lock()
	v.writeLimit = n
	v.mu.Unlock()
}

// CommandLog returns a copy of the handled commands, in order
func (v *VirtualFRU) CommandLog() []CommandLogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]CommandLogEntry(nil), v.log...)
}

// CountCommand returns how many times cmd was handled
func (v *VirtualFRU) CountCommand(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, e := range v.log {
		if e.Cmd == cmd {
			n++
		}
	}
	return n
}

// ResetLog clears the command log
func (v *VirtualFRU) ResetLog() {
	v.mu.Lock()
	v.log = nil
	v.mu.Unlock()
}
