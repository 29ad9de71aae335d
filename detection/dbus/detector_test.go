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

package dbus

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var firmwareReply = []byte{0x20, 0x81, 0x02, 0x15, 0x02, 0xBF, 0x99, 0xA9, 0x00, 0x01, 0x0B}

func testDetector(owned map[string]bool, ownerErr error) *detector {
	return &detector{
		services: []string{"xyz.openbmc_project.Ipmi.Host", "org.example.Ipmi"},
		hasOwner: func(_ context.Context, name string) (bool, error) {
			return owned[name], ownerErr
		},
		open: func(context.Context, string) (oemipmi.Transport, error) {
			mock := oemipmi.NewMockTransport()
			mock.SetResponse(oemipmi.NetFnApp, oemipmi.CmdGetDeviceID, firmwareReply)
			return mock, nil
		},
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	det := testDetector(map[string]bool{"xyz.openbmc_project.Ipmi.Host": true}, nil)

	devices, err := det.Detect(context.Background(), &detection.Options{Mode: detection.Safe})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "xyz.openbmc_project.Ipmi.Host", devices[0].Path)
	assert.Equal(t, detection.High, devices[0].Confidence)
	assert.Equal(t, "/xyz/openbmc_project/Ipmi", devices[0].Metadata["object"])
}

func TestDetect_Passive(t *testing.T) {
	t.Parallel()

	det := testDetector(map[string]bool{"xyz.openbmc_project.Ipmi.Host": true, "org.example.Ipmi": true}, nil)
	opts := &detection.Options{Mode: detection.Passive, IgnorePaths: []string{"org.example.Ipmi"}}

	devices, err := det.Detect(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, detection.Medium, devices[0].Confidence)
}

func TestDetect_NoOwner(t *testing.T) {
	t.Parallel()

	det := testDetector(nil, nil)
	_, err := det.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_BusUnavailable(t *testing.T) {
	t.Parallel()

	busErr := errors.New("no system bus")
	det := testDetector(nil, busErr)
	_, err := det.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, busErr)
	assert.Equal(t, oemipmi.TransportDBus, det.Transport())
}
