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

package fru

import (
	"fmt"
	"time"
)

// Board area layout
const (
	BoardFieldStart = 6 // first type/length byte after version, length, language and date

	boardLengthIndex   = 1
	boardLanguageIndex = 2
	boardDateIndex     = 3
)

// Board area field ordinals. Fields after BoardFRUFileID are OEM-defined.
const (
	BoardManufacturer = iota
	BoardProductName
	BoardSerialNumber
	BoardPartNumber
	BoardFRUFileID
	BoardCustomStart
)

// mfgEpoch is the zero point of the board manufacturing date field.
var mfgEpoch = time.Date(1996, time.January, 1, 0, 0, 0, 0, time.UTC)

// FieldValue is a typed value stored in an area.
type FieldValue struct {
	Data []byte
	Type byte
}

// Text builds an 8-bit text field
func Text(s string) FieldValue {
	return FieldValue{Type: TypeText, Data: []byte(s)}
}

// Binary builds a binary field
func Binary(b []byte) FieldValue {
	return FieldValue{Type: TypeBinary, Data: append([]byte(nil), b...)}
}

func (v FieldValue) String() string {
	if v.Type == TypeText {
		return string(v.Data)
	}
	return fmt.Sprintf("% X", v.Data)
}

// BoardArea is the decoded form of a board info area
type BoardArea struct {
	MfgDate  time.Time
	Fields   []FieldValue
	Language byte
}

// Marshal encodes the board area: header stub, fields, end marker,
// zero padding to an 8-byte boundary and the trailing checksum.
func (b *BoardArea) Marshal() ([]byte, error) {
	buf := []byte{FormatVersion, 0, b.Language, 0, 0, 0}

	minutes := uint32(0)
	if !b.MfgDate.IsZero() && b.MfgDate.After(mfgEpoch) {
		minutes = uint32(b.MfgDate.Sub(mfgEpoch) / time.Minute)
	}
	buf[boardDateIndex] = byte(minutes)
	buf[boardDateIndex+1] = byte(minutes >> 8)
	buf[boardDateIndex+2] = byte(minutes >> 16)

	for i, f := range b.Fields {
		if len(f.Data) > MaxFieldLength {
			return nil, fmt.Errorf("%w: field %d has %d bytes", ErrFieldTooLong, i, len(f.Data))
		}
		buf = append(buf, TypeLength(f.Type, len(f.Data)))
		buf = append(buf, f.Data...)
	}
	buf = append(buf, EndOfFields)

	// Room for the checksum, then round up to whole units
	total := len(buf) + 1
	if rem := total % AreaUnit; rem != 0 {
		total += AreaUnit - rem
	}
	if total > MaxAreaLength {
		return nil, fmt.Errorf("%w: need %d bytes", ErrAreaTooLarge, total)
	}
	for len(buf) < total {
		buf = append(buf, 0)
	}
	buf[boardLengthIndex] = byte(total / AreaUnit)
	Seal(buf)
	return buf, nil
}

// ParseBoardArea decodes a complete board area buffer
func ParseBoardArea(area []byte) (*BoardArea, error) {
	if len(area) < BoardFieldStart+2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortArea, len(area))
	}
	length := AreaOffset(area[boardLengthIndex])
	if length > len(area) || length < BoardFieldStart+2 {
		return nil, fmt.Errorf("%w: length byte says %d, have %d", ErrShortArea, length, len(area))
	}
	area = area[:length]
	if !Verify(area) {
		return nil, ErrBadChecksum
	}

	b := &BoardArea{Language: area[boardLanguageIndex]}
	minutes := uint32(area[boardDateIndex]) |
		uint32(area[boardDateIndex+1])<<8 |
		uint32(area[boardDateIndex+2])<<16
	if minutes != 0 {
		b.MfgDate = mfgEpoch.Add(time.Duration(minutes) * time.Minute)
	}

	fields, err := Fields(area, BoardFieldStart)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		b.Fields = append(b.Fields, FieldValue{
			Type: f.Type,
			Data: append([]byte(nil), area[f.Offset:f.Offset+f.Length]...),
		})
	}
	return b, nil
}

// Field returns the value at ordinal index, or false if the area has fewer fields
func (b *BoardArea) Field(index int) (FieldValue, bool) {
	if index < 0 || index >= len(b.Fields) {
		return FieldValue{}, false
	}
	return b.Fields[index], true
}

// BuildImage lays out a complete record holding only a board area, placed
// directly after the common header. The image is zero-padded to size bytes
// when size is larger than the laid-out record.
func BuildImage(board *BoardArea, size int) ([]byte, error) {
	area, err := board.Marshal()
	if err != nil {
		return nil, err
	}
	header := CommonHeader{Version: FormatVersion, Board: HeaderLength / AreaUnit}
	img := append(header.Marshal(), area...)
	for len(img) < size {
		img = append(img, 0)
	}
	return img, nil
}
