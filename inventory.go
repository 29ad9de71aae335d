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
	"fmt"

	"github.com/ZaparooProject/go-oemipmi/pkg/fru"
)

// AccessMode reports how the FRU device is addressed
type AccessMode byte

const (
	// AccessByBytes means offsets and counts are in bytes
	AccessByBytes AccessMode = 0
	// AccessByWords means offsets and counts are in 16-bit words
	AccessByWords AccessMode = 1
)

func (m AccessMode) String() string {
	if m == AccessByWords {
		return "words"
	}
	return "bytes"
}

// InventoryInfo is the reply to Get FRU Inventory Area Info
type InventoryInfo struct {
	Size       uint16
	AccessMode AccessMode
}

// WriteVerify selects which length a Write FRU Data reply must report
type WriteVerify int

const (
	// VerifyFieldLength expects the device to report the length of the new field value
	VerifyFieldLength WriteVerify = iota
	// VerifyAreaLength expects the device to report the length of the whole area written
	VerifyAreaLength
)

const (
	// DefaultMaxReadCount is the largest count a Read FRU Data request can carry
	DefaultMaxReadCount = 0xFF

	// areaProbeLength reaches the area length byte at relative offset 1
	areaProbeLength  = 3
	areaLengthOffset = 1
	maxRecordOffset  = 0xFFFF
)

// Inventory reads and edits fields of FRU records through a Bridge.
//
// Nothing is cached between calls: inventory info, the common header and the
// area are read fresh every time because the record may be rewritten by
// other agents. Calls for the same device identifier are serialized;
// calls for different devices run concurrently.
type Inventory struct {
	bridge       *Bridge
	locks        *deviceLocks
	fieldStart   int
	maxReadCount int
	verify       WriteVerify
}

// InventoryOption configures an Inventory
type InventoryOption func(*Inventory)

// WithFieldStart sets the offset of the first field inside the board area
func WithFieldStart(start int) InventoryOption {
	return func(inv *Inventory) {
		inv.fieldStart = start
	}
}

// WithMaxReadCount caps the byte count of a single Read FRU Data request
func WithMaxReadCount(n int) InventoryOption {
	return func(inv *Inventory) {
		if n > 0 && n <= DefaultMaxReadCount {
			inv.maxReadCount = n
		}
	}
}

// WithWriteVerify selects how the Write FRU Data reply is checked
func WithWriteVerify(v WriteVerify) InventoryOption {
	return func(inv *Inventory) {
		inv.verify = v
	}
}

// NewInventory creates an inventory accessor over bridge
func NewInventory(bridge *Bridge, opts ...InventoryOption) *Inventory {
	inv := &Inventory{
		bridge:       bridge,
		locks:        newDeviceLocks(),
		fieldStart:   fru.BoardFieldStart,
		maxReadCount: DefaultMaxReadCount,
		verify:       VerifyFieldLength,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Probe confirms the FRU device exists and returns its size and access mode
func (inv *Inventory) Probe(ctx context.Context, device byte) (*InventoryInfo, error) {
	resp, err := inv.bridge.Send(ctx, NewFrame(NetFnStorage, cmdGetFruInventoryAreaInfo, device))
	if err != nil {
		Debugf("Error obtaining FRU Inventory Info for device %d: FRU device may be missing: %v", device, err)
		return nil, fmt.Errorf("%w: %w", ErrDeviceAbsent, err)
	}
	if len(resp) < 3 {
		Debugf("FRU Inventory Info reply too short: %d bytes", len(resp))
		return nil, fmt.Errorf("%w: inventory info reply has %d bytes", ErrDeviceAbsent, len(resp))
	}

	info := &InventoryInfo{
		Size:       uint16(resp[1])<<8 | uint16(resp[0]),
		AccessMode: AccessMode(resp[2] & accessModeMask),
	}
	if info.Size < 1 {
		Debugln("Invalid FRU size from FRU Inventory Info")
		return nil, fmt.Errorf("%w: reported size 0", ErrDeviceAbsent)
	}
	return info, nil
}

// ReadHeader reads the 8-byte common header at offset 0
func (inv *Inventory) ReadHeader(ctx context.Context, device byte) (fru.CommonHeader, error) {
	data, err := inv.readData(ctx, device, 0, fru.HeaderLength)
	if err != nil {
		Debugf("Error obtaining FRU Header for device %d: %v", device, err)
		return fru.CommonHeader{}, fmt.Errorf("%w: %w", ErrHeaderRead, err)
	}
	header, err := fru.ParseCommonHeader(data)
	if err != nil {
		return fru.CommonHeader{}, fmt.Errorf("%w: %w", ErrHeaderRead, err)
	}
	return header, nil
}

// LoadArea reads a whole area given its offset in 8-byte units. The first
// round trip reads enough to reach the length byte; the second reads the
// full area once its true length is known.
func (inv *Inventory) LoadArea(ctx context.Context, device, offsetUnits byte) ([]byte, error) {
	offset := fru.AreaOffset(offsetUnits)
	if offset == 0 {
		return nil, fmt.Errorf("%w: area pointer is zero", ErrAreaRead)
	}

	head, err := inv.readData(ctx, device, offset, areaProbeLength)
	if err != nil {
		Debugf("Error obtaining FRU area at 0x%04X: %v", offset, err)
		return nil, fmt.Errorf("%w: %w", ErrAreaRead, err)
	}
	length := fru.AreaOffset(head[areaLengthOffset])
	if length == 0 {
		return nil, fmt.Errorf("%w: area at 0x%04X has zero length", ErrAreaRead, offset)
	}

	area, err := inv.readData(ctx, device, offset, length)
	if err != nil {
		Debugf("Error obtaining full FRU area at 0x%04X (%d bytes): %v", offset, length, err)
		return nil, fmt.Errorf("%w: %w", ErrAreaRead, err)
	}
	return area, nil
}

// ReadBoardArea reads and decodes the board area of device
func (inv *Inventory) ReadBoardArea(ctx context.Context, device byte) (*fru.BoardArea, error) {
	unlock := inv.locks.lock(device)
	defer unlock()

	if _, err := inv.Probe(ctx, device); err != nil {
		return nil, err
	}
	header, err := inv.ReadHeader(ctx, device)
	if err != nil {
		return nil, err
	}
	area, err := inv.LoadArea(ctx, device, header.Board)
	if err != nil {
		return nil, err
	}
	board, err := fru.ParseBoardArea(area)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAreaRead, err)
	}
	return board, nil
}

// GetField returns a copy of the data of field index in the board area
func (inv *Inventory) GetField(ctx context.Context, device byte, index int) ([]byte, error) {
	return inv.getField(ctx, device, inv.fieldStart, index)
}

// SetField replaces the data of field index in the board area. The new value
// must be exactly as long as the current one: fields cannot grow or shrink
// in place. On a write verify mismatch the record is left as the device
// wrote it; no rollback is attempted.
func (inv *Inventory) SetField(ctx context.Context, device byte, index int, value []byte) error {
	return inv.setField(ctx, device, inv.fieldStart, index, value)
}

func (inv *Inventory) getField(ctx context.Context, device byte, start, index int) ([]byte, error) {
	unlock := inv.locks.lock(device)
	defer unlock()

	p := &pipeline{inv: inv, op: "get", device: device, start: start, index: index}
	area, _, field, err := p.locate(ctx)
	if err != nil {
		return nil, err
	}

	value := append([]byte(nil), area[field.Offset:field.Offset+field.Length]...)
	p.advance(StageExtracted)
	return value, nil
}

func (inv *Inventory) setField(ctx context.Context, device byte, start, index int, value []byte) error {
	unlock := inv.locks.lock(device)
	defer unlock()

	p := &pipeline{inv: inv, op: "set", device: device, start: start, index: index}
	area, offset, field, err := p.locate(ctx)
	if err != nil {
		return err
	}

	if len(value) != field.Length {
		Debugf("Size of value to be written (%d) does not match current field size (%d)", len(value), field.Length)
		return p.fail(fmt.Errorf("%w: have %d bytes, field holds %d", ErrLengthMismatch, len(value), field.Length))
	}

	copy(area[field.Offset:], value)
	fru.Seal(area)

	written, err := inv.writeData(ctx, device, offset, area)
	if err != nil {
		Debugf("Error writing FRU area at 0x%04X: %v", offset, err)
		return p.fail(err)
	}
	p.advance(StageWritten)

	want := len(value)
	if inv.verify == VerifyAreaLength {
		want = len(area)
	}
	if written != want {
		Debugf("Length written to FRU (%d) does not match expected length (%d)", written, want)
		return p.fail(fmt.Errorf("%w: device reported %d, want %d", ErrWriteVerifyMismatch, written, want))
	}

	p.advance(StageDone)
	return nil
}

// readData reads count bytes at offset, splitting the read into requests of
// at most maxReadCount bytes. Each reply is [count returned, data...].
func (inv *Inventory) readData(ctx context.Context, device byte, offset, count int) ([]byte, error) {
	if offset < 0 || offset+count-1 > maxRecordOffset {
		return nil, fmt.Errorf("%w: read of %d bytes at 0x%X exceeds record address space", ErrInvalidParameter, count, offset)
	}

	out := make([]byte, 0, count)
	for len(out) < count {
		off := offset + len(out)
		n := min(count-len(out), inv.maxReadCount)

		resp, err := inv.bridge.Send(ctx, NewFrame(NetFnStorage, cmdReadFruData,
			device, byte(off), byte(off>>8), byte(n)))
		if err != nil {
			return nil, err
		}
		if len(resp) < 2 {
			return nil, fmt.Errorf("%w: read reply has %d bytes", ErrTransportFailure, len(resp))
		}

		got := int(resp[0])
		data := resp[1:]
		if got == 0 || got > n || got > len(data) {
			return nil, fmt.Errorf("%w: read reply count %d for %d requested, %d carried",
				ErrTransportFailure, got, n, len(data))
		}
		out = append(out, data[:got]...)
	}
	return out, nil
}

// writeData writes data at offset in one request and returns the count the
// device reports as written.
func (inv *Inventory) writeData(ctx context.Context, device byte, offset int, data []byte) (int, error) {
	if offset < 0 || offset+len(data)-1 > maxRecordOffset {
		return 0, fmt.Errorf("%w: write of %d bytes at 0x%X exceeds record address space",
			ErrInvalidParameter, len(data), offset)
	}

	payload := make([]byte, 0, 3+len(data))
	payload = append(payload, device, byte(offset), byte(offset>>8))
	payload = append(payload, data...)

	resp, err := inv.bridge.Send(ctx, NewFrame(NetFnStorage, cmdWriteFruData, payload...))
	if err != nil {
		return 0, err
	}
	if len(resp) < 1 {
		return 0, fmt.Errorf("%w: write reply carries no count", ErrTransportFailure)
	}
	return int(resp[0]), nil
}

// pipeline tracks one get or set call through its stages:
// idle, probed, header-read, area-loaded, field-located, then either
// extracted or written and done. Any stage may fail.
type pipeline struct {
	inv    *Inventory
	op     string
	start  int
	index  int
	stage  Stage
	device byte
}

func (p *pipeline) advance(s Stage) {
	p.stage = s
}

func (p *pipeline) fail(err error) error {
	Debugf("FRU %s device %d field %d failed after %s: %v", p.op, p.device, p.index, p.stage, err)
	return &AccessError{Op: p.op, Device: p.device, Index: p.index, Stage: p.stage, Err: err}
}

// locate runs probe, header read, area load and field walk. It returns the
// area buffer, the area's byte address in the record and the target field.
func (p *pipeline) locate(ctx context.Context) ([]byte, int, fru.Field, error) {
	if _, err := p.inv.Probe(ctx, p.device); err != nil {
		return nil, 0, fru.Field{}, p.fail(err)
	}
	p.advance(StageProbed)

	header, err := p.inv.ReadHeader(ctx, p.device)
	if err != nil {
		return nil, 0, fru.Field{}, p.fail(err)
	}
	p.advance(StageHeaderRead)

	area, err := p.inv.LoadArea(ctx, p.device, header.Board)
	if err != nil {
		return nil, 0, fru.Field{}, p.fail(err)
	}
	p.advance(StageAreaLoaded)

	field, err := fru.LocateField(area, p.start, p.index)
	if err != nil {
		if errors.Is(err, fru.ErrFieldEmpty) {
			Debugf("FRU field %d has no data. Does the field exist?", p.index)
		}
		return nil, 0, fru.Field{}, p.fail(err)
	}
	p.advance(StageFieldLocated)

	return area, header.BoardOffset(), field, nil
}
