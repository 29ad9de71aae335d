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
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-oemipmi"
)

// OpenFunc opens a transport on a candidate path
type OpenFunc func(ctx context.Context, path string) (oemipmi.Transport, error)

// Probe opens path, sends a single Get Device ID and closes the transport.
// Detection never retries: a candidate that does not answer once is
// reported as unconfirmed.
func Probe(ctx context.Context, open OpenFunc, path string, timeout time.Duration) (*oemipmi.FirmwareInfo, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tr, err := open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = tr.Close() }()

	info, err := oemipmi.NewBridge(tr).GetFirmwareInfo(ctx)
	if err != nil {
		oemipmi.Debugf("detection: probe %s failed: %v", path, err)
		return nil, err
	}
	return info, nil
}

// Confirm raises a device to High confidence and records the controller
// identity in its metadata
func Confirm(device *DeviceInfo, info *oemipmi.FirmwareInfo) {
	if device.Metadata == nil {
		device.Metadata = make(map[string]string)
	}
	device.Confidence = High
	device.Metadata["firmware"] = info.FirmwareVersion()
	device.Metadata["ipmi"] = info.IPMIVersionString()
	device.Metadata["manufacturer_id"] = fmt.Sprintf("%d", info.ManufacturerID)
	device.Metadata["product_id"] = fmt.Sprintf("0x%04X", info.ProductID)
}

// ProbeCandidates probes each candidate in turn when opts.Mode is Safe.
// In Safe mode only responders are kept, unless keepUnconfirmed is set
// for candidates whose node alone identifies IPMI.
func ProbeCandidates(ctx context.Context, open OpenFunc, candidates []DeviceInfo,
	opts *Options, keepUnconfirmed bool,
) []DeviceInfo {
	if opts.Mode == Passive {
		return candidates
	}

	var devices []DeviceInfo
	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		device := candidates[i]
		info, err := Probe(ctx, open, device.Path, opts.ProbeTimeout)
		if err == nil {
			Confirm(&device, info)
		} else if !keepUnconfirmed {
			continue
		}
		devices = append(devices, device)
	}
	return devices
}
