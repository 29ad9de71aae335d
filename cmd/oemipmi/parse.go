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

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/oem"
)

// parseByte accepts a byte written in hex, with or without a 0x prefix
func parseByte(s string) (byte, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(digits, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q: want hex 00-ff", s)
	}
	return byte(v), nil
}

// parseFrame builds a frame from netfn, cmd and data arguments
func parseFrame(args []string) (oemipmi.Frame, error) {
	b := make([]byte, 0, len(args))
	for _, arg := range args {
		v, err := parseByte(arg)
		if err != nil {
			return nil, err
		}
		b = append(b, v)
	}
	if len(b) < 2 {
		return nil, oemipmi.ErrShortFrame
	}
	return oemipmi.NewFrame(b[0], b[1], b[2:]...), nil
}

func parsePrivilege(s string) (oem.Privilege, error) {
	switch strings.ToLower(s) {
	case "callback":
		return oem.PrivilegeCallback, nil
	case "user":
		return oem.PrivilegeUser, nil
	case "operator":
		return oem.PrivilegeOperator, nil
	case "admin", "administrator":
		return oem.PrivilegeAdmin, nil
	default:
		return 0, fmt.Errorf("unknown privilege %q", s)
	}
}
