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

// Package serial detects controllers answering IPMI serial terminal mode
package serial

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/ZaparooProject/go-oemipmi/transport/serial"
	"go.bug.st/serial/enumerator"
)

// detector implements the Detector interface for serial ports
type detector struct {
	list func() ([]*enumerator.PortDetails, error)
	open detection.OpenFunc
}

// New creates a serial port detector probing at baud (DefaultBaudRate if 0)
func New(baud int) detection.Detector {
	if baud == 0 {
		baud = serial.DefaultBaudRate
	}
	return &detector{
		list: enumerator.GetDetailedPortsList,
		open: func(_ context.Context, path string) (oemipmi.Transport, error) {
			return serial.New(path, baud)
		},
	}
}

// Transport returns the transport type
func (*detector) Transport() oemipmi.TransportType {
	return oemipmi.TransportSerial
}

// Detect enumerates serial ports and, in Safe mode, keeps those whose
// controller answers Get Device ID
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var candidates []detection.DeviceInfo
	for _, port := range ports {
		vidpid := ""
		if port.IsUSB {
			vidpid = strings.ToUpper(port.VID + ":" + port.PID)
		}
		if vidpid != "" && detection.IsBlocked(vidpid, opts.Blocklist) {
			oemipmi.Debugf("serial detector: skipping blocked device %s (%s)", port.Name, vidpid)
			continue
		}
		if detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
			continue
		}
		candidates = append(candidates, deviceInfo(port, vidpid))
	}

	devices := detection.ProbeCandidates(ctx, d.open, candidates, opts, false)
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func deviceInfo(port *enumerator.PortDetails, vidpid string) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  oemipmi.TransportSerial,
		Path:       port.Name,
		Name:       port.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string),
	}
	if vidpid != "" {
		device.Metadata["vidpid"] = vidpid
	}
	if port.Product != "" {
		device.Name = port.Product
		device.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}
