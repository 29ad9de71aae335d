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

package detection

import (
	"time"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/internal/syncutil"
)

type cacheEntry struct {
	timestamp time.Time
	devices   []DeviceInfo
}

// Cache holds detection results per transport so repeated scans skip
// probing. The zero value is not usable; call NewCache.
type Cache struct {
	entries map[oemipmi.TransportType]cacheEntry
	now     func() time.Time
	mu      syncutil.RWMutex
}

// NewCache creates an empty results cache
func NewCache() *Cache {
	return &Cache{
		entries: make(map[oemipmi.TransportType]cacheEntry),
		now:     time.Now,
	}
}

func (c *Cache) get(transport oemipmi.TransportType, ttl time.Duration) ([]DeviceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[transport]
	if !exists || c.now().Sub(entry.timestamp) > ttl {
		return nil, false
	}
	return append([]DeviceInfo(nil), entry.devices...), true
}

func (c *Cache) set(transport oemipmi.TransportType, devices []DeviceInfo) {
	c.mu.Lock()
	c.entries[transport] = cacheEntry{
		devices:   append([]DeviceInfo(nil), devices...),
		timestamp: c.now(),
	}
	c.mu.Unlock()
}

// Clear drops results for the given transports, or all results when none
// are named
func (c *Cache) Clear(transports ...oemipmi.TransportType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(transports) == 0 {
		c.entries = make(map[oemipmi.TransportType]cacheEntry)
		return
	}
	for _, t := range transports {
		delete(c.entries, t)
	}
}
