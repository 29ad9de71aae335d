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
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"unicode"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/ZaparooProject/go-oemipmi/oem"
	"github.com/spf13/cobra"
)

func newDetectCmd(a *app) *cobra.Command {
	var output string
	var passive bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List reachable IPMI interfaces",
		Example: `  # Probe every interface with Get Device ID
  oemipmi detect

  # Only enumerate nodes and bus names
  oemipmi detect --passive --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("invalid output format '%s'; must be 'text' or 'json'", output)
			}
			opts := a.cfg.DetectionOptions()
			if passive {
				opts.Mode = detection.Passive
			}

			devices, err := detection.DetectAll(cmd.Context(), a.detectors(a.cfg), &opts)
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devices, output)
		},
	}
	cmd.Flags().StringVar(&output, "output", "text", "Output format: text|json")
	cmd.Flags().BoolVar(&passive, "passive", false, "Do not send any command")
	return cmd
}

func printDevices(w io.Writer, devices []detection.DeviceInfo, output string) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(devices); err != nil {
			return fmt.Errorf("encode devices: %w", err)
		}
		return nil
	}
	for _, d := range devices {
		_, _ = fmt.Fprintln(w, d.String())
		if fw, ok := d.Metadata["firmware"]; ok {
			_, _ = fmt.Fprintf(w, "  firmware %s, IPMI %s\n", fw, d.Metadata["ipmi"])
		}
	}
	return nil
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show controller identity and the FRU board area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()
			w := cmd.OutOrStdout()

			b, err := a.bridge(ctx)
			if err != nil {
				return err
			}
			if fw, err := b.GetFirmwareInfo(ctx); err == nil {
				_, _ = fmt.Fprintf(w, "Controller: %s\n", fw)
			} else {
				oemipmi.Debugf("Get Device ID failed: %v", err)
			}

			inv := oemipmi.NewInventory(b, a.cfg.InventoryOptions()...)
			device := a.cfg.FRU.DeviceID
			info, err := inv.Probe(ctx, device)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "FRU device %d: %d bytes, accessed by %s\n", device, info.Size, info.AccessMode)

			board, err := inv.ReadBoardArea(ctx, device)
			if err != nil {
				return err
			}
			if !board.MfgDate.IsZero() {
				_, _ = fmt.Fprintf(w, "Board manufactured: %s\n", board.MfgDate.Format("2006-01-02 15:04"))
			}
			for i, field := range board.Fields {
				_, _ = fmt.Fprintf(w, "  [%d] %s\n", i, field)
			}
			return nil
		},
	}
}

func newMACCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mac",
		Short: "Read or write the board area MAC address",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the MAC address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			acc, err := a.accessor(ctx, -1)
			if err != nil {
				return err
			}
			value, err := acc.Get(ctx)
			if err != nil {
				return err
			}
			if len(value) != oemipmi.MACAddressLength {
				return fmt.Errorf("field holds %d bytes, not a MAC address: % X", len(value), value)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), net.HardwareAddr(value).String())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "set <mac>",
		Short:   "Write a new MAC address",
		Example: "  oemipmi mac set 02:00:00:ab:cd:ef",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mac, err := net.ParseMAC(args[0])
			if err != nil {
				return fmt.Errorf("invalid MAC address: %w", err)
			}
			if len(mac) != oemipmi.MACAddressLength {
				return fmt.Errorf("invalid MAC address %s: want %d bytes", args[0], oemipmi.MACAddressLength)
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()
			acc, err := a.accessor(ctx, -1)
			if err != nil {
				return err
			}
			if err := acc.Set(ctx, mac); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "MAC address set to %s\n", mac)
			return nil
		},
	})
	return cmd
}

func newFieldCmd(a *app) *cobra.Command {
	var index int
	var asHex bool

	cmd := &cobra.Command{
		Use:   "field",
		Short: "Read or write any board area field",
	}
	cmd.PersistentFlags().IntVar(&index, "index", -1, "Field ordinal (default from configuration)")
	cmd.PersistentFlags().BoolVar(&asHex, "hex", false, "Treat values as hex instead of text")

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print a field value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			acc, err := a.accessor(ctx, index)
			if err != nil {
				return err
			}
			value, err := acc.Get(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatValue(value, asHex))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <value>",
		Short: "Write a field value of the same length as the current one",
		Example: `  oemipmi field set --index 2 SN000123
  oemipmi field set --index 5 --hex 02000000abcd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := []byte(args[0])
			if asHex {
				decoded, err := hex.DecodeString(strings.ReplaceAll(args[0], ":", ""))
				if err != nil {
					return fmt.Errorf("invalid hex value: %w", err)
				}
				value = decoded
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()
			acc, err := a.accessor(ctx, index)
			if err != nil {
				return err
			}
			if err := acc.Set(ctx, value); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "field %d set to %s\n", acc.Config().FieldIndex, formatValue(value, asHex))
			return nil
		},
	})
	return cmd
}

// formatValue prints printable text as-is and everything else as hex
func formatValue(value []byte, asHex bool) string {
	if !asHex && isPrintable(value) {
		return string(value)
	}
	return fmt.Sprintf("% X", value)
}

func isPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, r := range string(b) {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func newRawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <netfn> <cmd> [data...]",
		Short: "Send a raw request and print the completion code and reply",
		Example: `  # Get FRU Inventory Area Info for device 0
  oemipmi raw 0x0a 0x10 0x00`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := parseFrame(args)
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()
			b, err := a.bridge(ctx)
			if err != nil {
				return err
			}

			resp, err := b.Exchange(ctx, frame)
			var ce *oemipmi.CompletionError
			if err != nil && !errors.As(err, &ce) {
				return err
			}
			printReply(cmd.OutOrStdout(), resp.CompletionCode, resp.Data)
			return nil
		},
	}
}

func newOEMCmd(a *app) *cobra.Command {
	var privilege string

	cmd := &cobra.Command{
		Use:   "oem <netfn> <cmd> [data...]",
		Short: "Run an OEM command handler locally against the FRU record",
		Long: `Dispatches the request to the OEM handlers this tool implements, exactly as
the controller would, with the handler editing the record over the selected
transport. Registered commands:
  0x34 0x10  MAC address: 00 = get, 01 <6 bytes> = set`,
		Example: `  oemipmi oem 0x34 0x10 0x00
  oemipmi oem 0x34 0x10 0x01 0x02 0x00 0x00 0xab 0xcd 0xef`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := parsePrivilege(privilege)
			if err != nil {
				return err
			}
			frame, err := parseFrame(args)
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()
			acc, err := a.accessor(ctx, -1)
			if err != nil {
				return err
			}
			registry, err := oem.NewRegistry(oem.NewMACAddressHandler(acc))
			if err != nil {
				return err
			}

			reply := registry.Dispatch(ctx, priv, frame.NetFn(), frame.Cmd(), frame.Data())
			printReply(cmd.OutOrStdout(), reply.CompletionCode, reply.Data)
			return nil
		},
	}
	cmd.Flags().StringVar(&privilege, "privilege", "admin", "Session privilege: callback|user|operator|admin")
	return cmd
}

func printReply(w io.Writer, cc byte, data []byte) {
	_, _ = fmt.Fprintf(w, "cc=0x%02X", cc)
	if cc != oemipmi.CompletionOK {
		_, _ = fmt.Fprintf(w, " (%s)", (&oemipmi.CompletionError{Code: cc}).Meaning())
	}
	if len(data) > 0 {
		_, _ = fmt.Fprintf(w, " data=% X", data)
	}
	_, _ = fmt.Fprintln(w)
}
