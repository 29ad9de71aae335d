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

package devipmi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var firmwareReply = []byte{0x20, 0x81, 0x02, 0x15, 0x02, 0xBF, 0x99, 0xA9, 0x00, 0x01, 0x0B}

// fakeDev creates node files under a temp dir and returns a glob rooted there
func fakeDev(t *testing.T, nodes ...string) (root string, glob func(string) ([]string, error)) {
	t.Helper()

	root = t.TempDir()
	for _, n := range nodes {
		p := filepath.Join(root, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o600))
	}
	return root, func(pattern string) ([]string, error) {
		return filepath.Glob(filepath.Join(root, pattern))
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	root, glob := fakeDev(t, "dev/ipmi0", "dev/ipmi/1", "dev/ipmidev/0", "dev/null")
	responder := filepath.Join(root, "dev/ipmi0")

	det := &detector{
		glob: glob,
		open: func(_ context.Context, path string) (oemipmi.Transport, error) {
			if path != responder {
				return nil, errors.New("permission denied")
			}
			mock := oemipmi.NewMockTransport()
			mock.SetResponse(oemipmi.NetFnApp, oemipmi.CmdGetDeviceID, firmwareReply)
			return mock, nil
		},
	}

	devices, err := det.Detect(context.Background(), &detection.Options{Mode: detection.Safe})
	require.NoError(t, err)
	require.Len(t, devices, 3)

	byPath := make(map[string]detection.DeviceInfo)
	for _, d := range devices {
		byPath[d.Path] = d
	}
	assert.Equal(t, detection.High, byPath[responder].Confidence)
	assert.Equal(t, "OpenIPMI ipmi0", byPath[responder].Name)
	assert.Equal(t, detection.Medium, byPath[filepath.Join(root, "dev/ipmi/1")].Confidence)
	assert.Equal(t, detection.Medium, byPath[filepath.Join(root, "dev/ipmidev/0")].Confidence)
}

func TestDetect_IgnoreAndEmpty(t *testing.T) {
	t.Parallel()

	root, glob := fakeDev(t, "dev/ipmi0")
	det := &detector{glob: glob}

	opts := &detection.Options{Mode: detection.Passive, IgnorePaths: []string{filepath.Join(root, "dev/ipmi0")}}
	_, err := det.Detect(context.Background(), opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
	assert.Equal(t, oemipmi.TransportDevIPMI, det.Transport())
}
