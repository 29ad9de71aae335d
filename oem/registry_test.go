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

package oem

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore is a FieldStore holding one value in memory
type stubStore struct {
	getErr error
	setErr error
	value  []byte
	sets   int
}

func (s *stubStore) Get(context.Context) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return append([]byte(nil), s.value...), nil
}

func (s *stubStore) Set(_ context.Context, v []byte) error {
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	if len(v) != len(s.value) {
		return oemipmi.ErrLengthMismatch
	}
	s.value = append([]byte(nil), v...)
	return nil
}

var storedMAC = []byte{0x00, 0x1B, 0x44, 0x11, 0x3A, 0xB7}

func TestMACAddressHandler(t *testing.T) {
	t.Parallel()

	newMAC := []byte{0x02, 0x00, 0x5E, 0x00, 0x00, 0x01}

	tests := []struct {
		store     *stubStore
		name      string
		request   []byte
		wantData  []byte
		wantCC    byte
		wantSets  int
		wantValue []byte
	}{
		{
			name:      "get",
			store:     &stubStore{value: storedMAC},
			request:   []byte{0x00},
			wantCC:    oemipmi.CompletionOK,
			wantData:  storedMAC,
			wantValue: storedMAC,
		},
		{
			name:      "get ignores upper operation bits",
			store:     &stubStore{value: storedMAC},
			request:   []byte{0xFC},
			wantCC:    oemipmi.CompletionOK,
			wantData:  storedMAC,
			wantValue: storedMAC,
		},
		{
			name:      "set",
			store:     &stubStore{value: storedMAC},
			request:   append([]byte{0x01}, newMAC...),
			wantCC:    oemipmi.CompletionOK,
			wantData:  newMAC,
			wantSets:  1,
			wantValue: newMAC,
		},
		{
			name:      "set with short address",
			store:     &stubStore{value: storedMAC},
			request:   []byte{0x01, 0x02, 0x00},
			wantCC:    oemipmi.CompletionReqDataLenInvalid,
			wantValue: storedMAC,
		},
		{
			name:      "set with long address",
			store:     &stubStore{value: storedMAC},
			request:   append(append([]byte{0x01}, newMAC...), 0xFF),
			wantCC:    oemipmi.CompletionReqDataLenInvalid,
			wantValue: storedMAC,
		},
		{
			name:      "operation 2 is not a set",
			store:     &stubStore{value: storedMAC},
			request:   append([]byte{0x02}, newMAC...),
			wantCC:    oemipmi.CompletionInvalidCommand,
			wantValue: storedMAC,
		},
		{
			name:      "operation 3 is not a set",
			store:     &stubStore{value: storedMAC},
			request:   append([]byte{0x03}, newMAC...),
			wantCC:    oemipmi.CompletionInvalidCommand,
			wantValue: storedMAC,
		},
		{
			name:      "empty request",
			store:     &stubStore{value: storedMAC},
			request:   nil,
			wantCC:    oemipmi.CompletionReqDataLenInvalid,
			wantValue: storedMAC,
		},
		{
			name:      "get failure",
			store:     &stubStore{value: storedMAC, getErr: oemipmi.ErrFieldEmpty},
			request:   []byte{0x00},
			wantCC:    oemipmi.CompletionFRUDataError,
			wantValue: storedMAC,
		},
		{
			name:      "set verify failure",
			store:     &stubStore{value: storedMAC, setErr: oemipmi.ErrWriteVerifyMismatch},
			request:   append([]byte{0x01}, newMAC...),
			wantCC:    oemipmi.CompletionFRUDataError,
			wantData:  newMAC,
			wantSets:  1,
			wantValue: storedMAC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewMACAddressHandler(tt.store)
			reply := h.Handle(context.Background(), tt.request)
			assert.Equal(t, tt.wantCC, reply.CompletionCode)
			if tt.wantData != nil {
				assert.Equal(t, tt.wantData, reply.Data)
			} else {
				assert.Empty(t, reply.Data)
			}
			assert.Equal(t, tt.wantSets, tt.store.sets)
			assert.Equal(t, tt.wantValue, tt.store.value)
		})
	}
}

// nopHandler answers every request with success
type nopHandler struct {
	netFn byte
	cmd   byte
	priv  Privilege
}

func (h nopHandler) NetFn() byte          { return h.netFn }
func (h nopHandler) Cmd() byte            { return h.cmd }
func (h nopHandler) Privilege() Privilege { return h.priv }
func (nopHandler) Handle(context.Context, []byte) Reply {
	return Success([]byte{0x01})
}

func TestRegistry_Dispatch(t *testing.T) {
	t.Parallel()

	store := &stubStore{value: storedMAC}
	reg, err := NewRegistry(
		NewMACAddressHandler(store),
		nopHandler{netFn: oemipmi.NetFnOemThree, cmd: oemipmi.CmdNetNetworkFunction, priv: PrivilegeAdmin},
	)
	require.NoError(t, err)

	ctx := context.Background()

	reply := reg.Dispatch(ctx, PrivilegeUser, oemipmi.NetFnOemThree, oemipmi.CmdNetMACAddress, []byte{0x00})
	assert.Equal(t, oemipmi.CompletionOK, reply.CompletionCode)
	assert.Equal(t, storedMAC, reply.Data)

	reply = reg.Dispatch(ctx, PrivilegeUser, oemipmi.NetFnOemThree, oemipmi.CmdNetNetworkFunction, nil)
	assert.Equal(t, oemipmi.CompletionInsufficientPrivilege, reply.CompletionCode)

	reply = reg.Dispatch(ctx, PrivilegeAdmin, oemipmi.NetFnOemThree, oemipmi.CmdNetNetworkFunction, nil)
	assert.Equal(t, oemipmi.CompletionOK, reply.CompletionCode)

	reply = reg.Dispatch(ctx, PrivilegeAdmin, oemipmi.NetFnOemThree, 0x7F, nil)
	assert.Equal(t, oemipmi.CompletionInvalidCommand, reply.CompletionCode)

	assert.Equal(t, [][2]byte{
		{oemipmi.NetFnOemThree, oemipmi.CmdNetMACAddress},
		{oemipmi.NetFnOemThree, oemipmi.CmdNetNetworkFunction},
	}, reg.Commands())
}

func TestNewRegistry_Duplicate(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(
		nopHandler{netFn: 0x30, cmd: 0x01},
		nopHandler{netFn: 0x30, cmd: 0x02},
		nopHandler{netFn: 0x30, cmd: 0x01},
	)
	require.ErrorIs(t, err, ErrDuplicateHandler)
	assert.Contains(t, err.Error(), "netfn 0x30 cmd 0x01")
}

func TestCompletionCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want byte
	}{
		{name: "success", err: nil, want: oemipmi.CompletionOK},
		{name: "length mismatch", err: &oemipmi.AccessError{Err: oemipmi.ErrLengthMismatch}, want: oemipmi.CompletionReqDataLenInvalid},
		{name: "deadline", err: context.DeadlineExceeded, want: oemipmi.CompletionTimeout},
		{name: "field empty", err: oemipmi.ErrFieldEmpty, want: oemipmi.CompletionFRUDataError},
		{name: "device absent", err: oemipmi.ErrDeviceAbsent, want: oemipmi.CompletionFRUDataError},
		{name: "other", err: errors.New("boom"), want: oemipmi.CompletionFRUDataError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CompletionCodeFor(tt.err))
		})
	}
}
