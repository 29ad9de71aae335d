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

import "context"

// FieldConfig identifies one field of a FRU record
type FieldConfig struct {
	// FieldIndex is the ordinal of the field in the board area
	FieldIndex int
	// FieldStart is the offset of the first field's type/length byte
	FieldStart int
	// DeviceID is the FRU device identifier
	DeviceID byte
}

// DefaultFieldConfig returns the layout of the board area MAC address field
func DefaultFieldConfig() *FieldConfig {
	return &FieldConfig{
		DeviceID:   DefaultFRUDeviceID,
		FieldIndex: DefaultMACFieldIndex,
		FieldStart: DefaultBoardFieldStart,
	}
}

// FieldAccessor gets and sets the value of a single configured field
type FieldAccessor struct {
	inventory *Inventory
	config    FieldConfig
}

// NewFieldAccessor binds inventory to the field described by config.
// A nil config selects DefaultFieldConfig.
func NewFieldAccessor(inventory *Inventory, config *FieldConfig) *FieldAccessor {
	if config == nil {
		config = DefaultFieldConfig()
	}
	return &FieldAccessor{inventory: inventory, config: *config}
}

// Config returns the field layout this accessor uses
func (a *FieldAccessor) Config() FieldConfig {
	return a.config
}

// Get returns the current field value
func (a *FieldAccessor) Get(ctx context.Context) ([]byte, error) {
	return a.inventory.getField(ctx, a.config.DeviceID, a.config.FieldStart, a.config.FieldIndex)
}

// Set replaces the field value; value must match the current field length
func (a *FieldAccessor) Set(ctx context.Context, value []byte) error {
	return a.inventory.setField(ctx, a.config.DeviceID, a.config.FieldStart, a.config.FieldIndex, value)
}
