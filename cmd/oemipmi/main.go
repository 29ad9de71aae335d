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

// Command oemipmi inspects and edits FRU inventory fields and exercises
// OEM IPMI commands against a management controller
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"github.com/ZaparooProject/go-oemipmi/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

type globalFlags struct {
	configPath  string
	transport   string
	path        string
	writeVerify string
	logDir      string
	timeout     time.Duration
	baud        int
	fieldIndex  int
	fieldStart  int
	lun         uint8
	deviceID    uint8
	debug       bool
	sessionLog  bool
}

// app holds the state shared by every subcommand
type app struct {
	cfg       *config.Config
	transport oemipmi.Transport
	open      func(ctx context.Context, cfg *config.Config) (oemipmi.Transport, error)
	detectors func(cfg *config.Config) []detection.Detector
	flags     globalFlags
}

func newApp() *app {
	a := &app{detectors: defaultDetectors}
	a.open = func(ctx context.Context, cfg *config.Config) (oemipmi.Transport, error) {
		return openTransport(ctx, cfg, a.detectors(cfg))
	}
	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "oemipmi",
		Short: "FRU inventory field and OEM command tool for IPMI controllers",
		Long: `oemipmi reads and rewrites single fields of a FRU inventory record, such as
the board area MAC address, through the IPMI storage commands. It talks to
the controller over the host IPMI daemon on D-Bus, the Linux OpenIPMI
device, SSIF on an I2C bus or serial terminal mode.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.flags.configPath, "config", "c", "", "YAML configuration file")
	f.StringVarP(&a.flags.transport, "transport", "t", "", "Transport: auto|dbus|devipmi|ssif|serial")
	f.StringVarP(&a.flags.path, "path", "p", "", "Device path, I2C bus:address or D-Bus service name")
	f.IntVar(&a.flags.baud, "baud", 0, "Serial baud rate (default 115200)")
	f.DurationVar(&a.flags.timeout, "timeout", 0, "Per-command timeout (default 5s)")
	f.Uint8Var(&a.flags.lun, "lun", 0, "Logical unit number 0-3")
	f.Uint8Var(&a.flags.deviceID, "device-id", 0, "FRU device identifier")
	f.IntVar(&a.flags.fieldIndex, "field-index", 0, "Ordinal of the field in the board area")
	f.IntVar(&a.flags.fieldStart, "field-start", 0, "Offset of the first field in the board area")
	f.StringVar(&a.flags.writeVerify, "write-verify", "", "Expected written count: field|area")
	f.BoolVar(&a.flags.debug, "debug", false, "Enable debug output")
	f.BoolVar(&a.flags.sessionLog, "session-log", false, "Write a rotating session log")
	f.StringVar(&a.flags.logDir, "log-dir", "", "Directory for the session log")

	root.AddCommand(
		newDetectCmd(a),
		newInfoCmd(a),
		newMACCmd(a),
		newFieldCmd(a),
		newRawCmd(a),
		newOEMCmd(a),
	)
	return root
}

// setup loads the configuration file and applies explicitly set flags over it
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Transport = a.flags.transport
	}
	if flags.Changed("path") {
		cfg.Path = a.flags.path
	}
	if flags.Changed("baud") {
		cfg.Baud = a.flags.baud
	}
	if flags.Changed("timeout") {
		cfg.TimeoutMs = int(a.flags.timeout / time.Millisecond)
	}
	if flags.Changed("lun") {
		cfg.LUN = a.flags.lun
	}
	if flags.Changed("device-id") {
		cfg.FRU.DeviceID = a.flags.deviceID
	}
	if flags.Changed("field-index") {
		cfg.FRU.FieldIndex = a.flags.fieldIndex
	}
	if flags.Changed("field-start") {
		cfg.FRU.FieldStart = a.flags.fieldStart
	}
	if flags.Changed("write-verify") {
		cfg.FRU.WriteVerify = a.flags.writeVerify
	}
	if flags.Changed("debug") {
		cfg.Log.Debug = a.flags.debug
	}
	if flags.Changed("session-log") {
		cfg.Log.Session = a.flags.sessionLog
	}
	if flags.Changed("log-dir") {
		cfg.Log.SessionDir = a.flags.logDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Log.Debug {
		oemipmi.SetDebugEnabled(true)
	}
	if cfg.Log.Session {
		path, err := oemipmi.InitSessionLog(cfg.SessionLogOptions())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "session log: %s\n", path)
	}
	return nil
}

// bridge opens the configured transport on first use
func (a *app) bridge(ctx context.Context) (*oemipmi.Bridge, error) {
	if a.transport == nil {
		tr, err := a.open(ctx, a.cfg)
		if err != nil {
			return nil, err
		}
		oemipmi.Debugf("connected over %s", tr.Type())
		a.transport = tr
	}
	return oemipmi.NewBridge(a.transport, oemipmi.WithLUN(a.cfg.LUN)), nil
}

func (a *app) inventory(ctx context.Context) (*oemipmi.Inventory, error) {
	b, err := a.bridge(ctx)
	if err != nil {
		return nil, err
	}
	return oemipmi.NewInventory(b, a.cfg.InventoryOptions()...), nil
}

func (a *app) accessor(ctx context.Context, fieldIndex int) (*oemipmi.FieldAccessor, error) {
	inv, err := a.inventory(ctx)
	if err != nil {
		return nil, err
	}
	fc := a.cfg.FieldConfig()
	if fieldIndex >= 0 {
		fc.FieldIndex = fieldIndex
	}
	return oemipmi.NewFieldAccessor(inv, fc), nil
}

// commandContext bounds one subcommand by the configured timeout
func (a *app) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if t := a.cfg.Timeout(); t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return context.WithCancel(ctx)
}

func (a *app) close() {
	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			oemipmi.Debugf("close transport: %v", err)
		}
		a.transport = nil
	}
	_ = oemipmi.CloseSessionLog()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp()
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
