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
	"errors"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/ZaparooProject/go-oemipmi"
	"golang.org/x/sys/unix"
)

// Kernel ABI structures from include/uapi/linux/ipmi.h. Field order and
// natural alignment reproduce the C layouts.
type systemInterfaceAddr struct {
	AddrType int32
	Channel  int16
	LUN      uint8
	_        uint8
}

type ipmiMsg struct {
	NetFn   uint8
	Cmd     uint8
	DataLen uint16
	Data    *byte
}

type ipmiReq struct {
	Addr    *byte
	AddrLen uint32
	MsgID   int
	Msg     ipmiMsg
}

type ipmiRecv struct {
	RecvType int32
	Addr     *byte
	AddrLen  uint32
	MsgID    int
	Msg      ipmiMsg
}

const (
	iocMagic = 'i'
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | iocMagic<<8 | nr
}

var (
	ioctlSendCommand     = ioc(iocRead, 13, unsafe.Sizeof(ipmiReq{}))
	ioctlReceiveMsgTrunc = ioc(iocRead|iocWrite, 11, unsafe.Sizeof(ipmiRecv{}))
)

// New opens the OpenIPMI device at path (DefaultPath if empty)
func New(path string) (*Transport, error) {
	if path == "" {
		path = DefaultPath
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open IPMI device %s: %w", path, err)
	}
	return &Transport{path: path, fd: fd, timeout: DefaultTimeout}, nil
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Execute sends the request to the local BMC and waits for its response
func (t *Transport) Execute(ctx context.Context, req *oemipmi.Request) (*oemipmi.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, oemipmi.NewTransportError("Execute", t.path, oemipmi.ErrTransportClosed, oemipmi.ErrorTypePermanent)
	}

	t.msgID++
	if err := t.send(req, t.msgID); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		if err := t.waitReadable(ctx, deadline); err != nil {
			return nil, err
		}
		resp, msgID, err := t.receive(req)
		if err != nil {
			return nil, err
		}
		if msgID != t.msgID {
			oemipmi.Debugf("devipmi: dropping reply for message %d, want %d", msgID, t.msgID)
			continue
		}
		return resp, nil
	}
}

func (t *Transport) send(req *oemipmi.Request, msgID int) error {
	addr := systemInterfaceAddr{AddrType: systemInterfaceAddrType, Channel: bmcChannel, LUN: req.LUN}
	data := append([]byte(nil), req.Data...)

	r := ipmiReq{
		Addr:    (*byte)(unsafe.Pointer(&addr)),
		AddrLen: uint32(unsafe.Sizeof(addr)),
		MsgID:   msgID,
		Msg: ipmiMsg{
			NetFn:   req.NetFn,
			Cmd:     req.Cmd,
			DataLen: uint16(len(data)),
		},
	}
	if len(data) > 0 {
		r.Msg.Data = &data[0]
	}

	err := ioctl(t.fd, ioctlSendCommand, unsafe.Pointer(&r))
	runtime.KeepAlive(&addr)
	runtime.KeepAlive(data)
	if err != nil {
		return oemipmi.NewTransportError("send", t.path,
			fmt.Errorf("%w: %w", oemipmi.ErrTransportWrite, err), oemipmi.ErrorTypeTransient)
	}
	return nil
}

// waitReadable polls the device in short slices so ctx cancellation is seen
func (t *Transport) waitReadable(ctx context.Context, deadline time.Time) error {
	const slice = 100 * time.Millisecond
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return oemipmi.NewTimeoutError("receive", t.path)
		}
		wait := min(remaining, slice)

		n, err := unix.Poll(fds, int(wait/time.Millisecond)+1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return oemipmi.NewTransportError("poll", t.path,
				fmt.Errorf("%w: %w", oemipmi.ErrTransportRead, err), oemipmi.ErrorTypeTransient)
		}
		if n > 0 && fds[0].Revents&unix.POLLIN != 0 {
			return nil
		}
	}
}

func (t *Transport) receive(req *oemipmi.Request) (*oemipmi.Response, int, error) {
	var addr systemInterfaceAddr
	buf := make([]byte, maxMessageLength)

	r := ipmiRecv{
		Addr:    (*byte)(unsafe.Pointer(&addr)),
		AddrLen: uint32(unsafe.Sizeof(addr)),
		Msg: ipmiMsg{
			Data:    &buf[0],
			DataLen: uint16(len(buf)),
		},
	}

	err := ioctl(t.fd, ioctlReceiveMsgTrunc, unsafe.Pointer(&r))
	runtime.KeepAlive(&addr)
	runtime.KeepAlive(buf)
	if err != nil {
		return nil, 0, oemipmi.NewTransportError("receive", t.path,
			fmt.Errorf("%w: %w", oemipmi.ErrTransportRead, err), oemipmi.ErrorTypeTransient)
	}
	if r.RecvType != responseRecvType {
		return nil, r.MsgID, oemipmi.NewInvalidResponseError("receive", t.path)
	}

	resp, err := decodeReply(req, r.Msg.NetFn, r.Msg.Cmd, buf[:r.Msg.DataLen], t.path)
	return resp, r.MsgID, err
}

// Close closes the device node
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("failed to close IPMI device: %w", err)
	}
	return nil
}
