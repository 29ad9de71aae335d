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

// Package devipmi detects OpenIPMI character devices
package devipmi

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/ZaparooProject/go-oemipmi/transport/devipmi"
)

// Patterns are the node names used by the ipmi_devintf driver across
// distributions
var Patterns = []string{"/dev/ipmi[0-9]*", "/dev/ipmi/[0-9]*", "/dev/ipmidev/[0-9]*"}

type detector struct {
	open detection.OpenFunc
	glob func(pattern string) ([]string, error)
}

// New creates an OpenIPMI device detector
func New() detection.Detector {
	return &detector{
		glob: filepath.Glob,
		open: func(_ context.Context, path string) (oemipmi.Transport, error) {
			return devipmi.New(path)
		},
	}
}

// Transport returns the transport type
func (*detector) Transport() oemipmi.TransportType {
	return oemipmi.TransportDevIPMI
}

// Detect lists OpenIPMI nodes. The nodes exist only for IPMI, so they are
// reported at Medium confidence even when the controller does not answer.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	seen := make(map[string]bool)
	var nodes []string
	for _, pattern := range Patterns {
		matches, err := d.glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				nodes = append(nodes, m)
			}
		}
	}
	sort.Strings(nodes)

	var candidates []detection.DeviceInfo
	for _, node := range nodes {
		if detection.IsPathIgnored(node, opts.IgnorePaths) {
			continue
		}
		candidates = append(candidates, detection.DeviceInfo{
			Transport:  oemipmi.TransportDevIPMI,
			Path:       node,
			Name:       "OpenIPMI " + filepath.Base(node),
			Confidence: detection.Medium,
			Metadata:   make(map[string]string),
		})
	}

	devices := detection.ProbeCandidates(ctx, d.open, candidates, opts, true)
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}
