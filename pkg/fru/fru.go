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

// Package fru decodes and edits the platform management FRU record layout:
// the 8-byte common header, length-prefixed area fields and the zero-sum
// checksums that guard each area.
package fru

import (
	"errors"
	"fmt"
)

// Layout constants
const (
	AreaUnit        = 8    // area offsets and lengths are counted in 8-byte units
	HeaderLength    = 8    // common header size in bytes
	EndOfFields     = 0xC1 // type/length byte that terminates an area's field list
	FormatVersion   = 0x01 // common header and area format version
	fieldLengthMask = 0x3F
	fieldTypeShift  = 6
	MaxFieldLength  = fieldLengthMask
	MaxAreaLength   = 0xFF * AreaUnit
)

// Field type codes (bits 7:6 of the type/length byte)
const (
	TypeBinary      byte = 0x00
	TypeBCDPlus     byte = 0x01
	TypeSixBitASCII byte = 0x02
	TypeText        byte = 0x03
)

// Common errors.
var (
	ErrShortHeader   = errors.New("fru: header shorter than 8 bytes")
	ErrFieldEmpty    = errors.New("fru: field has no data")
	ErrFieldNotFound = errors.New("fru: field not found")
	ErrFieldTooLong  = errors.New("fru: field longer than 63 bytes")
	ErrAreaTooLarge  = errors.New("fru: area longer than 2040 bytes")
	ErrBadChecksum   = errors.New("fru: checksum mismatch")
	ErrShortArea     = errors.New("fru: area truncated")
)

// CommonHeader is the fixed 8-byte structure at offset 0 of every record.
// Area pointers are stored in 8-byte units; zero means the area is absent.
type CommonHeader struct {
	Version     byte
	Internal    byte
	Chassis     byte
	Board       byte
	Product     byte
	MultiRecord byte
	Pad         byte
	Checksum    byte
}

// ParseCommonHeader decodes the first 8 bytes of buf
func ParseCommonHeader(buf []byte) (CommonHeader, error) {
	if len(buf) < HeaderLength {
		return CommonHeader{}, fmt.Errorf("%w: got %d", ErrShortHeader, len(buf))
	}
	return CommonHeader{
		Version:     buf[0],
		Internal:    buf[1],
		Chassis:     buf[2],
		Board:       buf[3],
		Product:     buf[4],
		MultiRecord: buf[5],
		Pad:         buf[6],
		Checksum:    buf[7],
	}, nil
}

// Marshal encodes the header, recomputing its checksum
func (h CommonHeader) Marshal() []byte {
	buf := []byte{h.Version, h.Internal, h.Chassis, h.Board, h.Product, h.MultiRecord, h.Pad, 0}
	buf[7] = Checksum(buf[:7])
	return buf
}

// Valid reports whether the stored checksum matches the header contents
func (h CommonHeader) Valid() bool {
	return Verify([]byte{h.Version, h.Internal, h.Chassis, h.Board, h.Product, h.MultiRecord, h.Pad, h.Checksum})
}

// BoardOffset returns the byte address of the board area
func (h CommonHeader) BoardOffset() int {
	return AreaOffset(h.Board)
}

// AreaOffset converts an area pointer in 8-byte units to a byte address
func AreaOffset(units byte) int {
	return int(units) * AreaUnit
}

// Checksum returns the two's complement checksum of data: the byte that,
// added to the sum of data, yields zero modulo 256.
func Checksum(data []byte) byte {
	sum := byte(0)
	for _, b := range data {
		sum += b
	}
	return -sum
}

// Verify reports whether data, including its trailing checksum byte, sums to zero
func Verify(data []byte) bool {
	sum := byte(0)
	for _, b := range data {
		sum += b
	}
	return len(data) > 0 && sum == 0
}

// Seal recomputes the checksum stored in the last byte of an area buffer
func Seal(area []byte) {
	if len(area) == 0 {
		return
	}
	area[len(area)-1] = Checksum(area[:len(area)-1])
}

// FieldLength extracts the data length from a type/length byte
func FieldLength(prefix byte) int {
	return int(prefix & fieldLengthMask)
}

// FieldType extracts the type code from a type/length byte
func FieldType(prefix byte) byte {
	return prefix >> fieldTypeShift
}

// TypeLength builds a type/length byte
func TypeLength(typ byte, length int) byte {
	return typ<<fieldTypeShift | byte(length)&fieldLengthMask
}

// Field locates one length-prefixed value inside an area buffer.
// Offset is the index of the first data byte, not of the prefix.
type Field struct {
	Offset int
	Length int
	Type   byte
}

// Prefix returns the index of the field's type/length byte
func (f Field) Prefix() int {
	return f.Offset - 1
}

// LocateField walks the length-prefixed fields of area starting at start and
// returns the field at ordinal index. Fields have no random access: finding
// field k sums the prefixes and lengths of fields 0..k-1.
//
// A field that is present but carries no data yields ErrFieldEmpty together
// with its location. Reaching the end-of-fields marker or running past the
// checksum byte yields ErrFieldNotFound. A 0xC1 prefix always ends the walk;
// it is never read as a one-byte text field.
func LocateField(area []byte, start, index int) (Field, error) {
	if start < 0 || index < 0 {
		return Field{}, fmt.Errorf("%w: start %d index %d", ErrFieldNotFound, start, index)
	}

	// The last byte of an area is its checksum and never holds field data.
	limit := len(area) - 1
	off := start
	for i := 0; i <= index; i++ {
		if off >= limit {
			return Field{}, fmt.Errorf("%w: field %d starts past area end", ErrFieldNotFound, i)
		}
		prefix := area[off]
		if prefix == EndOfFields {
			return Field{}, fmt.Errorf("%w: end marker before field %d", ErrFieldNotFound, index)
		}
		n := FieldLength(prefix)
		if off+1+n > limit {
			return Field{}, fmt.Errorf("%w: field %d overruns area", ErrFieldNotFound, i)
		}
		if i == index {
			f := Field{Offset: off + 1, Length: n, Type: FieldType(prefix)}
			if n == 0 {
				return f, ErrFieldEmpty
			}
			return f, nil
		}
		off += 1 + n
	}

	return Field{}, ErrFieldNotFound
}

// Fields walks every field from start up to the end-of-fields marker
func Fields(area []byte, start int) ([]Field, error) {
	var fields []Field
	limit := len(area) - 1
	off := start
	for off < limit {
		prefix := area[off]
		if prefix == EndOfFields {
			return fields, nil
		}
		n := FieldLength(prefix)
		if off+1+n > limit {
			return fields, fmt.Errorf("%w: field %d overruns area", ErrShortArea, len(fields))
		}
		fields = append(fields, Field{Offset: off + 1, Length: n, Type: FieldType(prefix)})
		off += 1 + n
	}
	return fields, fmt.Errorf("%w: missing end-of-fields marker", ErrShortArea)
}
