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

//go:build !prod

package oemipmi

import (
	"testing"

	testutil "github.com/ZaparooProject/go-oemipmi/internal/testing"
	"github.com/ZaparooProject/go-oemipmi/pkg/fru"
	"github.com/stretchr/testify/require"
)

// testMAC is the board area MAC address used by the default test record
var testMAC = []byte{0x00, 0x1B, 0x44, 0x11, 0x3A, 0xB7}

// defaultTestFields lays out a board area with the MAC address at ordinal 5
func defaultTestFields() []fru.FieldValue {
	return []fru.FieldValue{
		fru.Text("Foxconn"),
		fru.Text("Mainboard"),
		fru.Text("SN0001"),
		fru.Text("PN-42"),
		fru.Binary(nil),
		fru.Binary(testMAC),
	}
}

// createSimulatedInventory creates an inventory backed by a virtual FRU device
// holding the default board area in a 256-byte record.
func createSimulatedInventory(t *testing.T, opts ...InventoryOption) (*Inventory, *testutil.VirtualFRU) {
	t.Helper()
	device, err := testutil.NewVirtualBoardFRU(256, defaultTestFields()...)
	require.NoError(t, err)
	return NewInventory(NewBridge(NewSimulatorTransport(device)), opts...), device
}
