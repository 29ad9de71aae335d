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

// Package dbus detects the host IPMI daemon on the system bus
package dbus

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/ZaparooProject/go-oemipmi/transport/dbus"
	godbus "github.com/godbus/dbus/v5"
)

type detector struct {
	hasOwner func(ctx context.Context, name string) (bool, error)
	open     detection.OpenFunc
	services []string
}

// New creates a detector for the given bus names (dbus.DefaultService if
// none)
func New(services ...string) detection.Detector {
	if len(services) == 0 {
		services = []string{dbus.DefaultService}
	}
	return &detector{
		services: services,
		hasOwner: nameHasOwner,
		open: func(ctx context.Context, name string) (oemipmi.Transport, error) {
			return dbus.New(ctx, dbus.WithService(name), dbus.WithRetry(&oemipmi.RetryConfig{MaxAttempts: 1}))
		},
	}
}

func nameHasOwner(ctx context.Context, name string) (bool, error) {
	conn, err := godbus.ConnectSystemBus(godbus.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var owned bool
	err = conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned)
	if err != nil {
		return false, fmt.Errorf("NameHasOwner %s: %w", name, err)
	}
	return owned, nil
}

// Transport returns the transport type
func (*detector) Transport() oemipmi.TransportType {
	return oemipmi.TransportDBus
}

// Detect reports each configured bus name that currently has an owner
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	var candidates []detection.DeviceInfo
	for _, name := range d.services {
		if detection.IsPathIgnored(name, opts.IgnorePaths) {
			continue
		}
		owned, err := d.hasOwner(ctx, name)
		if err != nil {
			return nil, err
		}
		if !owned {
			oemipmi.Debugf("dbus detector: %s has no owner", name)
			continue
		}
		candidates = append(candidates, detection.DeviceInfo{
			Transport:  oemipmi.TransportDBus,
			Path:       name,
			Name:       "IPMI host daemon",
			Confidence: detection.Medium,
			Metadata:   map[string]string{"object": string(dbus.DefaultObjectPath)},
		})
	}

	devices := detection.ProbeCandidates(ctx, d.open, candidates, opts, true)
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}
