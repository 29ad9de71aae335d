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

package oemipmi

import (
	"context"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-oemipmi/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransport_Defaults(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	assert.Equal(t, TransportMock, mock.Type())

	resp, err := mock.Execute(context.Background(), &Request{NetFn: NetFnApp, Cmd: 0x01})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, NetFnApp|0x01, resp.NetFn)
	assert.Equal(t, 1, mock.GetCallCount(NetFnApp, 0x01))
}

func TestMockTransport_ErrorInjection(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetError(NetFnStorage, cmdReadFruData, ErrTransportRead)

	_, err := mock.Execute(context.Background(), &Request{NetFn: NetFnStorage, Cmd: cmdReadFruData})
	require.ErrorIs(t, err, ErrTransportRead)

	mock.ClearError(NetFnStorage, cmdReadFruData)
	_, err = mock.Execute(context.Background(), &Request{NetFn: NetFnStorage, Cmd: cmdReadFruData})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.GetCallCount(NetFnStorage, cmdReadFruData))

	mock.Reset()
	assert.Zero(t, mock.GetCallCount(NetFnStorage, cmdReadFruData))
	assert.Empty(t, mock.Requests())
}

func TestMockTransport_DelayHonoursContext(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mock.Execute(ctx, &Request{NetFn: NetFnApp, Cmd: 0x01})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockTransport_Closed(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	require.NoError(t, mock.Close())

	_, err := mock.Execute(context.Background(), &Request{NetFn: NetFnApp, Cmd: 0x01})
	require.Error(t, err)
}

func TestSimulatorTransport(t *testing.T) {
	t.Parallel()

	device, err := testutil.NewVirtualBoardFRU(128, defaultTestFields()...)
	require.NoError(t, err)
	tr := NewSimulatorTransport(device)

	resp, err := tr.Execute(context.Background(), &Request{
		NetFn: NetFnStorage,
		Cmd:   cmdGetFruInventoryAreaInfo,
		Data:  []byte{DefaultFRUDeviceID},
	})
	require.NoError(t, err)
	assert.Equal(t, NetFnStorage|0x01, resp.NetFn)
	assert.Equal(t, []byte{0x80, 0x00, 0x00}, resp.Data)

	require.NoError(t, tr.Close())
	_, err = tr.Execute(context.Background(), &Request{NetFn: NetFnStorage, Cmd: cmdGetFruInventoryAreaInfo})
	require.ErrorIs(t, err, ErrTransportClosed)
}
