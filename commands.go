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

// Network function codes
const (
	NetFnApp       byte = 0x06
	NetFnStorage   byte = 0x0A
	NetFnTransport byte = 0x0C
	NetFnOemThree  byte = 0x34
)

// Application command codes
const (
	CmdGetDeviceID byte = 0x01
)

// Storage command codes for FRU devices
const (
	cmdGetFruInventoryAreaInfo byte = 0x10
	cmdReadFruData             byte = 0x11
	cmdWriteFruData            byte = 0x12
)

// OEM command codes registered under NetFnOemThree
const (
	CmdNetMACAddress      byte = 0x10
	CmdNetNetworkFunction byte = 0x11
)

// Record layout defaults for the board area MAC address field
const (
	DefaultFRUDeviceID     byte = 0x00
	DefaultMACFieldIndex        = 5
	DefaultBoardFieldStart      = 6
	MACAddressLength            = 6
)

// accessModeMask selects the access mode bit of the inventory info reply.
const accessModeMask = 0x01
