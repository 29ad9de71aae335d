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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_ShortFrameRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame Frame
	}{
		{name: "nil frame", frame: nil},
		{name: "empty frame", frame: Frame{}},
		{name: "netfn only", frame: Frame{NetFnStorage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMockTransport()
			bridge := NewBridge(mock)

			payload, err := bridge.Send(context.Background(), tt.frame)
			require.ErrorIs(t, err, ErrShortFrame)
			assert.Nil(t, payload)
			assert.Empty(t, mock.Requests(), "short frame must not be dispatched")
		})
	}
}

func TestBridge_Send(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(NetFnStorage, cmdGetFruInventoryAreaInfo, []byte{0x00, 0x01, 0x00})
	bridge := NewBridge(mock, WithLUN(0x02))

	payload, err := bridge.Send(context.Background(), NewFrame(NetFnStorage, cmdGetFruInventoryAreaInfo, 0x07))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x00}, payload)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, NetFnStorage, reqs[0].NetFn)
	assert.Equal(t, cmdGetFruInventoryAreaInfo, reqs[0].Cmd)
	assert.Equal(t, byte(0x02), reqs[0].LUN)
	assert.Equal(t, []byte{0x07}, reqs[0].Data)
}

func TestBridge_SendEmptyPayload(t *testing.T) {
	t.Parallel()

	bridge := NewBridge(NewMockTransport())
	payload, err := bridge.Send(context.Background(), NewFrame(NetFnApp, 0x01))
	require.NoError(t, err)
	assert.NotNil(t, payload)
	assert.Empty(t, payload)
}

func TestBridge_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup   func(m *MockTransport)
		check   func(t *testing.T, err error)
		name    string
		wantErr error
	}{
		{
			name: "non-zero completion code",
			setup: func(m *MockTransport) {
				m.SetReply(NetFnStorage, cmdReadFruData, CompletionParamOutOfRange, []byte{0xAA})
			},
			wantErr: ErrTransportFailure,
			check: func(t *testing.T, err error) {
				var ce *CompletionError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, CompletionParamOutOfRange, ce.Code)
				assert.Equal(t, cmdReadFruData, ce.Cmd)
			},
		},
		{
			name: "plain transport error",
			setup: func(m *MockTransport) {
				m.SetError(NetFnStorage, cmdReadFruData, errors.New("queue unavailable"))
			},
			wantErr: ErrTransportFailure,
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "Execute", te.Op)
				assert.Equal(t, string(TransportMock), te.Port)
			},
		},
		{
			name: "typed transport error passes through",
			setup: func(m *MockTransport) {
				m.SetError(NetFnStorage, cmdReadFruData, NewTimeoutError("read", "/dev/ttyS1"))
			},
			wantErr: ErrTransportTimeout,
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "/dev/ttyS1", te.Port)
				assert.True(t, IsRetryable(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMockTransport()
			tt.setup(mock)
			bridge := NewBridge(mock)

			payload, err := bridge.Send(context.Background(), NewFrame(NetFnStorage, cmdReadFruData, 0, 0, 0, 8))
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrTransportFailure)
			assert.Nil(t, payload)
			tt.check(t, err)
		})
	}
}

func TestBridge_ExchangeReturnsRejectedReply(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetReply(NetFnOemThree, CmdNetMACAddress, CompletionInvalidCommand, nil)

	resp, err := NewBridge(mock).Exchange(context.Background(), NewFrame(NetFnOemThree, CmdNetMACAddress, 0x00))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.OK())
	assert.Equal(t, CompletionInvalidCommand, resp.CompletionCode)
}

func TestFrame_Accessors(t *testing.T) {
	t.Parallel()

	f := NewFrame(NetFnStorage, cmdWriteFruData, 0x00, 0x08, 0x00, 0xAB)
	assert.Equal(t, NetFnStorage, f.NetFn())
	assert.Equal(t, cmdWriteFruData, f.Cmd())
	assert.Equal(t, []byte{0x00, 0x08, 0x00, 0xAB}, f.Data())
	assert.Equal(t, "netfn=0x0A cmd=0x12 data=[00 08 00 AB]", f.String())

	data := f.Data()
	data[0] = 0xFF
	assert.Equal(t, byte(0x00), f.Data()[0], "Data must return a copy")

	short := Frame{0x0A}
	assert.Equal(t, byte(0x0A), short.NetFn())
	assert.Equal(t, byte(0), short.Cmd())
	assert.Empty(t, short.Data())
}
