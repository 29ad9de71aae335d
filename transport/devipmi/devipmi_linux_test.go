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

//go:build linux

package devipmi

import (
	"context"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelABI(t *testing.T) {
	t.Parallel()

	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout values below are for 64-bit kernels")
	}

	assert.Equal(t, uintptr(8), unsafe.Sizeof(systemInterfaceAddr{}))
	assert.Equal(t, uintptr(16), unsafe.Sizeof(ipmiMsg{}))
	assert.Equal(t, uintptr(40), unsafe.Sizeof(ipmiReq{}))
	assert.Equal(t, uintptr(48), unsafe.Sizeof(ipmiRecv{}))

	assert.Equal(t, uintptr(0x8028690d), ioctlSendCommand)
	assert.Equal(t, uintptr(0xc030690b), ioctlReceiveMsgTrunc)
}

func TestNew_MissingDevice(t *testing.T) {
	t.Parallel()

	_, err := New(filepath.Join(t.TempDir(), "ipmi9"))
	require.Error(t, err)
}

func TestExecute_Closed(t *testing.T) {
	t.Parallel()

	tr := &Transport{path: DefaultPath, fd: -1, closed: true}
	_, err := tr.Execute(context.Background(), &oemipmi.Request{NetFn: oemipmi.NetFnStorage, Cmd: 0x10})
	require.ErrorIs(t, err, oemipmi.ErrTransportClosed)
	require.NoError(t, tr.Close())
	assert.Equal(t, oemipmi.TransportDevIPMI, tr.Type())
}

func TestExecute_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &Transport{path: DefaultPath, fd: -1}
	_, err := tr.Execute(ctx, &oemipmi.Request{NetFn: oemipmi.NetFnStorage, Cmd: 0x10})
	require.ErrorIs(t, err, context.Canceled)
}
