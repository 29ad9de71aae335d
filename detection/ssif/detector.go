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

// Package ssif detects SSIF controllers on Linux I2C buses
package ssif

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/ZaparooProject/go-oemipmi/transport/ssif"
)

// BusPattern matches the i2c-dev nodes probed for a controller
const BusPattern = "/dev/i2c-*"

type detector struct {
	open    detection.OpenFunc
	glob    func(pattern string) ([]string, error)
	goos    string
	address uint16
}

// New creates an SSIF detector probing the given 7-bit slave address on
// every bus (ssif.DefaultAddress if 0)
func New(address uint16) detection.Detector {
	if address == 0 {
		address = ssif.DefaultAddress
	}
	return &detector{
		address: address,
		glob:    filepath.Glob,
		goos:    runtime.GOOS,
		open: func(_ context.Context, path string) (oemipmi.Transport, error) {
			return ssif.New(path)
		},
	}
}

// Transport returns the transport type
func (*detector) Transport() oemipmi.TransportType {
	return oemipmi.TransportSSIF
}

// Detect lists I2C buses and, in Safe mode, keeps those with a controller
// answering at the configured address. A bare I2C bus says nothing about
// IPMI, so Passive results are Low confidence.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if d.goos != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}

	buses, err := d.glob(BusPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list I2C buses: %w", err)
	}
	sort.Strings(buses)

	var candidates []detection.DeviceInfo
	for _, bus := range buses {
		path := fmt.Sprintf("%s:0x%02X", bus, d.address)
		if detection.IsPathIgnored(path, opts.IgnorePaths) || detection.IsPathIgnored(bus, opts.IgnorePaths) {
			continue
		}
		candidates = append(candidates, detection.DeviceInfo{
			Transport:  oemipmi.TransportSSIF,
			Path:       path,
			Name:       filepath.Base(bus),
			Confidence: detection.Low,
			Metadata:   map[string]string{"address": fmt.Sprintf("0x%02X", d.address)},
		})
	}

	devices := detection.ProbeCandidates(ctx, d.open, candidates, opts, false)
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}
