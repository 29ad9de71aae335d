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

import "github.com/ZaparooProject/go-oemipmi/internal/syncutil"

// deviceLocks hands out one mutex per FRU device identifier. The record is
// a shared external resource with no locking of its own, so every
// read-modify-write pipeline holds its device's lock from probe to finish.
type deviceLocks struct {
	locks map[byte]*syncutil.Mutex
	mu    syncutil.Mutex
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: make(map[byte]*syncutil.Mutex)}
}

// lock acquires the mutex for device and returns its release function
func (d *deviceLocks) lock(device byte) func() {
	d.mu.Lock()
	m, ok := d.locks[device]
	if !ok {
		m = &syncutil.Mutex{}
		d.locks[device] = m
	}
	d.mu.Unlock()

	m.Lock()
	return m.Unlock
}
