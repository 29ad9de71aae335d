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

package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	dbusdetect "github.com/ZaparooProject/go-oemipmi/detection/dbus"
	devipmidetect "github.com/ZaparooProject/go-oemipmi/detection/devipmi"
	serialdetect "github.com/ZaparooProject/go-oemipmi/detection/serial"
	ssifdetect "github.com/ZaparooProject/go-oemipmi/detection/ssif"
	"github.com/ZaparooProject/go-oemipmi/internal/config"
	"github.com/ZaparooProject/go-oemipmi/transport/dbus"
	"github.com/ZaparooProject/go-oemipmi/transport/devipmi"
	"github.com/ZaparooProject/go-oemipmi/transport/serial"
	"github.com/ZaparooProject/go-oemipmi/transport/ssif"
)

// transportPreference orders equally confident interfaces
var transportPreference = map[oemipmi.TransportType]int{
	oemipmi.TransportDBus:    0,
	oemipmi.TransportDevIPMI: 1,
	oemipmi.TransportSSIF:    2,
	oemipmi.TransportSerial:  3,
}

func defaultDetectors(cfg *config.Config) []detection.Detector {
	return []detection.Detector{
		dbusdetect.New(),
		devipmidetect.New(),
		ssifdetect.New(0),
		serialdetect.New(cfg.Baud),
	}
}

// openTransport opens the configured transport, detecting one first when
// the transport is auto
func openTransport(ctx context.Context, cfg *config.Config, detectors []detection.Detector) (oemipmi.Transport, error) {
	kind := oemipmi.TransportType(cfg.Transport)
	path := cfg.Path

	if cfg.Transport == config.TransportAuto {
		device, err := selectDevice(ctx, cfg, detectors)
		if err != nil {
			return nil, err
		}
		oemipmi.Debugf("auto-detected %s", device)
		kind, path = device.Transport, device.Path
	}
	return createTransport(ctx, kind, path, cfg)
}

// selectDevice runs detection and keeps the most confident interface
func selectDevice(ctx context.Context, cfg *config.Config, detectors []detection.Detector) (detection.DeviceInfo, error) {
	opts := cfg.DetectionOptions()
	devices, err := detection.DetectAll(ctx, detectors, &opts)
	if err != nil {
		return detection.DeviceInfo{}, fmt.Errorf("auto-detection failed: %w", err)
	}
	return bestDevice(devices), nil
}

func bestDevice(devices []detection.DeviceInfo) detection.DeviceInfo {
	sorted := append([]detection.DeviceInfo(nil), devices...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return transportPreference[sorted[i].Transport] < transportPreference[sorted[j].Transport]
	})
	return sorted[0]
}

func createTransport(
	ctx context.Context, kind oemipmi.TransportType, path string, cfg *config.Config,
) (oemipmi.Transport, error) {
	timeout := cfg.Timeout()

	switch kind {
	case oemipmi.TransportDBus:
		var opts []dbus.Option
		if path != "" {
			opts = append(opts, dbus.WithService(path))
		}
		tr, err := dbus.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create D-Bus transport: %w", err)
		}
		return tr, nil

	case oemipmi.TransportDevIPMI:
		tr, err := devipmi.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenIPMI transport: %w", err)
		}
		if timeout > 0 {
			tr.SetTimeout(timeout)
		}
		return tr, nil

	case oemipmi.TransportSSIF:
		tr, err := ssif.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSIF transport for %s: %w", path, err)
		}
		if timeout > 0 {
			tr.SetTimeout(timeout)
		}
		return tr, nil

	case oemipmi.TransportSerial:
		var opts []serial.Option
		if timeout > 0 {
			opts = append(opts, serial.WithResponseTimeout(timeout))
		}
		tr, err := serial.New(path, cfg.Baud, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create serial transport for %s: %w", path, err)
		}
		return tr, nil

	default:
		return nil, fmt.Errorf("unsupported transport type: %s", kind)
	}
}
