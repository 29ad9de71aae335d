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

//go:build !linux

package devipmi

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-oemipmi"
)

// New is only supported on Linux
func New(path string) (*Transport, error) {
	return nil, fmt.Errorf("%w: OpenIPMI device %s", oemipmi.ErrUnsupportedPlatform, path)
}

// Execute is only supported on Linux
func (*Transport) Execute(context.Context, *oemipmi.Request) (*oemipmi.Response, error) {
	return nil, oemipmi.ErrUnsupportedPlatform
}

// Close is a no-op where the device is unsupported
func (*Transport) Close() error {
	return nil
}
