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

// Package oem implements OEM command handlers and the dispatcher that routes
// requests to them. Handlers are registered explicitly when the registry is
// built at start-up; nothing registers itself on import.
package oem

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ZaparooProject/go-oemipmi"
)

// Privilege is the minimum session privilege a command requires
type Privilege int

const (
	PrivilegeCallback Privilege = iota + 1
	PrivilegeUser
	PrivilegeOperator
	PrivilegeAdmin
)

// Reply is a handler result: completion code followed by response data
type Reply struct {
	Data           []byte
	CompletionCode byte
}

// Success builds a successful reply
func Success(data []byte) Reply {
	return Reply{CompletionCode: oemipmi.CompletionOK, Data: data}
}

// Failure builds a reply carrying only a completion code
func Failure(code byte) Reply {
	return Reply{CompletionCode: code}
}

// Handler serves one (netFn, cmd) pair
type Handler interface {
	NetFn() byte
	Cmd() byte
	Privilege() Privilege
	Handle(ctx context.Context, data []byte) Reply
}

// ErrDuplicateHandler is returned when two handlers claim the same command
var ErrDuplicateHandler = errors.New("oem: duplicate handler")

type route struct {
	netFn byte
	cmd   byte
}

// Registry dispatches requests to handlers
type Registry struct {
	handlers map[route]Handler
}

// NewRegistry builds a registry from an explicit handler list
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[route]Handler, len(handlers))}
	for _, h := range handlers {
		key := route{netFn: h.NetFn(), cmd: h.Cmd()}
		if _, exists := r.handlers[key]; exists {
			return nil, fmt.Errorf("%w: netfn 0x%02X cmd 0x%02X", ErrDuplicateHandler, key.netFn, key.cmd)
		}
		oemipmi.Debugf("Registering OEM:[0x%02X], Cmd:[0x%02X]", key.netFn, key.cmd)
		r.handlers[key] = h
	}
	return r, nil
}

// Lookup returns the handler for a command
func (r *Registry) Lookup(netFn, cmd byte) (Handler, bool) {
	h, ok := r.handlers[route{netFn: netFn, cmd: cmd}]
	return h, ok
}

// Dispatch routes a request. Unknown commands reply with invalid command;
// privilege is checked against the caller's level.
func (r *Registry) Dispatch(ctx context.Context, priv Privilege, netFn, cmd byte, data []byte) Reply {
	h, ok := r.Lookup(netFn, cmd)
	if !ok {
		return Failure(oemipmi.CompletionInvalidCommand)
	}
	if priv < h.Privilege() {
		return Failure(oemipmi.CompletionInsufficientPrivilege)
	}
	return h.Handle(ctx, data)
}

// Commands lists the registered (netFn, cmd) pairs in ascending order
func (r *Registry) Commands() [][2]byte {
	out := make([][2]byte, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, [2]byte{k.netFn, k.cmd})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// CompletionCodeFor translates an inventory access error into the
// completion code reported to the requester
func CompletionCodeFor(err error) byte {
	switch {
	case err == nil:
		return oemipmi.CompletionOK
	case errors.Is(err, oemipmi.ErrLengthMismatch):
		return oemipmi.CompletionReqDataLenInvalid
	case errors.Is(err, context.DeadlineExceeded):
		return oemipmi.CompletionTimeout
	default:
		return oemipmi.CompletionFRUDataError
	}
}
