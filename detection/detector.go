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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-oemipmi"
)

// Mode represents the level of invasiveness for device detection
type Mode int

const (
	// Passive mode only enumerates device nodes and bus names
	Passive Mode = iota
	// Safe mode sends Get Device ID to every candidate
	Safe
)

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - a node that could carry IPMI
	Low Confidence = iota
	// Medium confidence - a node dedicated to IPMI (e.g. /dev/ipmi0)
	Medium
	// High confidence - the controller answered Get Device ID
	High
)

// DeviceInfo represents a detected management controller interface
type DeviceInfo struct {
	// Additional metadata (e.g., VID:PID for USB adapters, firmware version)
	Metadata map[string]string
	// Transport type
	Transport oemipmi.TransportType
	// Connection path (e.g., "/dev/ttyUSB0", "/dev/i2c-1:0x10", a bus name)
	Path string
	// Human-readable device name
	Name string
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	confidence := "unknown"
	switch d.Confidence {
	case Low:
		confidence = "low"
	case Medium:
		confidence = "medium"
	case High:
		confidence = "high"
	}
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, confidence)
}

// Options configures the detection behavior
type Options struct {
	// Results cache shared across calls; nil disables caching
	Cache *Cache
	// USB VID:PID pairs to skip (e.g., ["1234:5678", "ABCD:EF01"])
	Blocklist []string
	// Device paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// Which transports to check (empty = all)
	Transports []oemipmi.TransportType
	// Cache TTL duration
	CacheTTL time.Duration
	// Maximum time to wait for detection
	Timeout time.Duration
	// Bound on a single Get Device ID probe
	ProbeTimeout time.Duration
	// Detection invasiveness level
	Mode Mode
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Mode:         Safe,
		Timeout:      10 * time.Second,
		ProbeTimeout: 2 * time.Second,
		Blocklist:    DefaultBlocklist(),
		CacheTTL:     30 * time.Second,
	}
}

// Detector interface for transport-specific device detection
type Detector interface {
	// Detect searches for devices using the given options
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	// Transport returns the transport type this detector handles
	Transport() oemipmi.TransportType
}

// Errors
var (
	// ErrNoDevicesFound indicates no management controller was detected
	ErrNoDevicesFound = errors.New("no IPMI devices found")
	// ErrNoDetectors indicates the transport filter left nothing to run
	ErrNoDetectors = errors.New("no detectors available for specified transports")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrUnsupportedPlatform indicates the platform doesn't support this detection method
	ErrUnsupportedPlatform = oemipmi.ErrUnsupportedPlatform
)

// filterDetectors returns detectors filtered by transport types
func filterDetectors(detectors []Detector, transports []oemipmi.TransportType) []Detector {
	if len(transports) == 0 {
		return detectors
	}

	var filtered []Detector
	for _, d := range detectors {
		for _, t := range transports {
			if d.Transport() == t {
				filtered = append(filtered, d)
				break
			}
		}
	}
	return filtered
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs detectors in parallel and merges their results. Devices
// are returned when at least one detector found something, even if others
// failed.
func DetectAll(ctx context.Context, detectors []Detector, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	detectors = filterDetectors(detectors, opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, detector := range detectors {
		go func(d Detector) {
			results <- runSingleDetector(ctx, d, opts)
		}(detector)
	}
	return collectDetectionResults(ctx, results, len(detectors))
}

// runSingleDetector performs detection for a single detector
func runSingleDetector(ctx context.Context, detector Detector, opts *Options) detectionResult {
	transport := detector.Transport()

	if opts.Cache != nil {
		if cached, found := opts.Cache.get(transport, opts.CacheTTL); found {
			return detectionResult{devices: filterDevices(cached, opts)}
		}
	}

	devices, err := detector.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		oemipmi.Debugf("detection: %s detector failed: %v", transport, err)
		return detectionResult{err: fmt.Errorf("%s: %w", transport, err)}
	}

	if opts.Cache != nil {
		if len(devices) > 0 {
			opts.Cache.set(transport, devices)
		} else {
			opts.Cache.Clear(transport)
		}
	}

	return detectionResult{devices: devices}
}

// collectDetectionResults gathers results from all detector goroutines
func collectDetectionResults(
	ctx context.Context,
	results chan detectionResult,
	numDetectors int,
) ([]DeviceInfo, error) {
	var allDevices []DeviceInfo
	var errs []error

	for range numDetectors {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
			} else {
				allDevices = append(allDevices, res.devices...)
			}
		case <-ctx.Done():
			if len(allDevices) > 0 {
				return allDevices, nil
			}
			return nil, ErrDetectionTimeout
		}
	}

	if len(allDevices) > 0 {
		return allDevices, nil
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNoDevicesFound
}

// filterDevices applies IgnorePaths and Blocklist filtering to a device list
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}
