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
	"fmt"
)

// minDeviceIDLength is the reply length without the optional auxiliary
// firmware revision
const minDeviceIDLength = 11

// FirmwareInfo is the controller identity returned by Get Device ID
type FirmwareInfo struct {
	Aux             []byte
	ManufacturerID  uint32
	ProductID       uint16
	DeviceID        byte
	DeviceRevision  byte
	FirmwareMajor   byte
	FirmwareMinor   byte
	IPMIVersion     byte
	AdditionalFlags byte
	ProvidesSDRs    bool
	DeviceAvailable bool
}

// FirmwareVersion formats the firmware revision as major.minor. The minor
// revision is BCD encoded.
func (f *FirmwareInfo) FirmwareVersion() string {
	return fmt.Sprintf("%d.%02X", f.FirmwareMajor, f.FirmwareMinor)
}

// IPMIVersionString formats the supported IPMI version, e.g. "2.0"
func (f *FirmwareInfo) IPMIVersionString() string {
	return fmt.Sprintf("%d.%d", f.IPMIVersion&0x0F, f.IPMIVersion>>4)
}

func (f *FirmwareInfo) String() string {
	return fmt.Sprintf("device 0x%02X rev %d firmware %s IPMI %s manufacturer %d product 0x%04X",
		f.DeviceID, f.DeviceRevision, f.FirmwareVersion(), f.IPMIVersionString(),
		f.ManufacturerID, f.ProductID)
}

// ParseFirmwareInfo decodes a Get Device ID reply payload
func ParseFirmwareInfo(data []byte) (*FirmwareInfo, error) {
	if len(data) < minDeviceIDLength {
		return nil, fmt.Errorf("%w: device ID reply is %d bytes", ErrInvalidResponse, len(data))
	}
	info := &FirmwareInfo{
		DeviceID:        data[0],
		DeviceRevision:  data[1] & 0x0F,
		ProvidesSDRs:    data[1]&0x80 != 0,
		FirmwareMajor:   data[2] & 0x7F,
		DeviceAvailable: data[2]&0x80 == 0,
		FirmwareMinor:   data[3],
		IPMIVersion:     data[4],
		AdditionalFlags: data[5],
		ManufacturerID:  uint32(data[6]) | uint32(data[7])<<8 | uint32(data[8]&0x0F)<<16,
		ProductID:       uint16(data[9]) | uint16(data[10])<<8,
	}
	if len(data) > minDeviceIDLength {
		info.Aux = append([]byte(nil), data[minDeviceIDLength:]...)
	}
	return info, nil
}

// GetFirmwareInfo sends Get Device ID to the controller
func (b *Bridge) GetFirmwareInfo(ctx context.Context) (*FirmwareInfo, error) {
	data, err := b.Send(ctx, NewFrame(NetFnApp, CmdGetDeviceID))
	if err != nil {
		return nil, err
	}
	return ParseFirmwareInfo(data)
}
