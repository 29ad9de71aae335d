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

package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

var firmwareReply = []byte{0x20, 0x81, 0x02, 0x15, 0x02, 0xBF, 0x99, 0xA9, 0x00, 0x01, 0x0B}

func testDetector(ports []*enumerator.PortDetails, responders ...string) (*detector, *[]string) {
	var probed []string
	return &detector{
		list: func() ([]*enumerator.PortDetails, error) { return ports, nil },
		open: func(_ context.Context, path string) (oemipmi.Transport, error) {
			probed = append(probed, path)
			mock := oemipmi.NewMockTransport()
			mock.SetError(oemipmi.NetFnApp, oemipmi.CmdGetDeviceID, oemipmi.NewTimeoutError("Execute", path))
			for _, r := range responders {
				if r == path {
					mock.ClearError(oemipmi.NetFnApp, oemipmi.CmdGetDeviceID)
					mock.SetResponse(oemipmi.NetFnApp, oemipmi.CmdGetDeviceID, firmwareReply)
				}
			}
			return mock, nil
		},
	}, &probed
}

var testPorts = []*enumerator.PortDetails{
	{Name: "/dev/ttyS0"},
	{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R USB UART", SerialNumber: "A10K"},
	{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
}

func TestDetect_SafeKeepsResponders(t *testing.T) {
	t.Parallel()

	det, probed := testDetector(testPorts, "/dev/ttyUSB0")
	opts := detection.DefaultOptions()

	devices, err := det.Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	dev := devices[0]
	assert.Equal(t, "/dev/ttyUSB0", dev.Path)
	assert.Equal(t, "FT232R USB UART", dev.Name)
	assert.Equal(t, detection.High, dev.Confidence)
	assert.Equal(t, "0403:6001", dev.Metadata["vidpid"])
	assert.Equal(t, "A10K", dev.Metadata["serial"])
	assert.Equal(t, "2.15", dev.Metadata["firmware"])

	assert.Equal(t, []string{"/dev/ttyS0", "/dev/ttyUSB0"}, *probed, "blocked adapter is never opened")
}

func TestDetect_Passive(t *testing.T) {
	t.Parallel()

	det, probed := testDetector(testPorts)
	opts := &detection.Options{Mode: detection.Passive, IgnorePaths: []string{"/dev/ttyS0"}}

	devices, err := det.Detect(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, detection.Low, devices[0].Confidence)
	assert.Empty(t, *probed)
}

func TestDetect_NoResponders(t *testing.T) {
	t.Parallel()

	det, _ := testDetector(testPorts)
	opts := detection.DefaultOptions()

	_, err := det.Detect(context.Background(), &opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_EnumerationFails(t *testing.T) {
	t.Parallel()

	listErr := errors.New("sysfs unavailable")
	det := &detector{list: func() ([]*enumerator.PortDetails, error) { return nil, listErr }}

	_, err := det.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, listErr)
	assert.Equal(t, oemipmi.TransportSerial, det.Transport())
}
