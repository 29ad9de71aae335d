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

package oem

import (
	"context"

	"github.com/ZaparooProject/go-oemipmi"
)

// MAC address operations carried in the low two bits of request byte 0
const (
	opGetMAC = 0b00
	opSetMAC = 0b01
	opMask   = 0b11
)

// FieldStore is the field access the MAC address handler needs
type FieldStore interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, value []byte) error
}

// MACAddressHandler gets or sets the MAC address stored in the FRU board area.
//
// Request:  byte 0 operation (0 get, 1 set), bytes 1..6 MAC address on set.
// Response: the MAC address read or written.
type MACAddressHandler struct {
	store FieldStore
}

// NewMACAddressHandler creates a handler over store
func NewMACAddressHandler(store FieldStore) *MACAddressHandler {
	return &MACAddressHandler{store: store}
}

// NetFn implements Handler
func (*MACAddressHandler) NetFn() byte { return oemipmi.NetFnOemThree }

// Cmd implements Handler
func (*MACAddressHandler) Cmd() byte { return oemipmi.CmdNetMACAddress }

// Privilege implements Handler
func (*MACAddressHandler) Privilege() Privilege { return PrivilegeUser }

// Handle implements Handler
func (h *MACAddressHandler) Handle(ctx context.Context, data []byte) Reply {
	if len(data) < 1 {
		return Failure(oemipmi.CompletionReqDataLenInvalid)
	}

	switch data[0] & opMask {
	case opGetMAC:
		oemipmi.Debugln("Getting MAC Address from FRU device")
		mac, err := h.store.Get(ctx)
		if err != nil {
			oemipmi.Debugf("Error obtaining MAC Address from FRU device: %v", err)
			return Failure(CompletionCodeFor(err))
		}
		return Success(mac)

	case opSetMAC:
		mac := append([]byte(nil), data[1:]...)
		if len(mac) != oemipmi.MACAddressLength {
			oemipmi.Debugf("MAC Address size is incorrect: %d bytes", len(mac))
			return Failure(oemipmi.CompletionReqDataLenInvalid)
		}
		oemipmi.Debugln("Setting MAC Address in FRU device")
		if err := h.store.Set(ctx, mac); err != nil {
			oemipmi.Debugf("Error setting MAC Address in FRU device: %v", err)
			return Reply{CompletionCode: CompletionCodeFor(err), Data: mac}
		}
		return Success(mac)

	default:
		oemipmi.Debugln("MAC Address command's operation value is invalid")
		return Failure(oemipmi.CompletionInvalidCommand)
	}
}
