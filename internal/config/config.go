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

// Package config loads the oemipmi YAML configuration file
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZaparooProject/go-oemipmi"
	"github.com/ZaparooProject/go-oemipmi/detection"
	"gopkg.in/yaml.v3"
)

// TransportAuto selects the first detected interface
const TransportAuto = "auto"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// FRUConfig locates the field edited by the mac and field commands
type FRUConfig struct {
	WriteVerify string `yaml:"write_verify"` // "field" or "area"
	DeviceID    uint8  `yaml:"device_id"`
	FieldIndex  int    `yaml:"field_index"`
	FieldStart  int    `yaml:"field_start"`
	MaxRead     int    `yaml:"max_read,omitempty"`
}

// LogConfig controls debug output and the rotating session log
type LogConfig struct {
	SessionDir string `yaml:"session_dir,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Debug      bool   `yaml:"debug"`
	Session    bool   `yaml:"session"`
	Compress   bool   `yaml:"compress"`
}

// DetectionConfig controls interface discovery for the auto transport
type DetectionConfig struct {
	Mode        string   `yaml:"mode"` // "safe" or "passive"
	IgnorePaths []string `yaml:"ignore_paths,omitempty"`
	Blocklist   []string `yaml:"blocklist,omitempty"`
	TimeoutMs   int      `yaml:"timeout_ms"`
}

// Config is the on-disk configuration
type Config struct {
	Transport string          `yaml:"transport"` // "auto", "dbus", "serial", "ssif", "devipmi"
	Path      string          `yaml:"path,omitempty"`
	Detection DetectionConfig `yaml:"detection"`
	Log       LogConfig       `yaml:"log"`
	FRU       FRUConfig       `yaml:"fru"`
	Baud      int             `yaml:"baud,omitempty"`
	TimeoutMs int             `yaml:"timeout_ms"`
	LUN       uint8           `yaml:"lun"`
}

// Default returns the board area MAC address layout over auto-detection
func Default() *Config {
	return &Config{
		Transport: TransportAuto,
		TimeoutMs: 5000,
		FRU: FRUConfig{
			DeviceID:    oemipmi.DefaultFRUDeviceID,
			FieldIndex:  oemipmi.DefaultMACFieldIndex,
			FieldStart:  oemipmi.DefaultBoardFieldStart,
			WriteVerify: "field",
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Detection: DetectionConfig{
			Mode:      "safe",
			TimeoutMs: 10000,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Write stores cfg as YAML at path
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	switch oemipmi.TransportType(c.Transport) {
	case TransportAuto, oemipmi.TransportDBus, oemipmi.TransportDevIPMI:
	case oemipmi.TransportSerial, oemipmi.TransportSSIF:
		if c.Path == "" {
			return fmt.Errorf("%w: transport %s requires a path", ErrInvalidConfig, c.Transport)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
	if c.LUN > 3 {
		return fmt.Errorf("%w: lun %d out of range 0-3", ErrInvalidConfig, c.LUN)
	}
	if c.TimeoutMs < 0 || c.Detection.TimeoutMs < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if c.FRU.FieldIndex < 0 || c.FRU.FieldStart < 0 {
		return fmt.Errorf("%w: negative field index or start", ErrInvalidConfig)
	}
	if c.FRU.MaxRead < 0 || c.FRU.MaxRead > oemipmi.DefaultMaxReadCount {
		return fmt.Errorf("%w: max_read %d out of range 0-%d", ErrInvalidConfig, c.FRU.MaxRead, oemipmi.DefaultMaxReadCount)
	}
	if _, err := c.WriteVerify(); err != nil {
		return err
	}
	if _, err := c.detectionMode(); err != nil {
		return err
	}
	return nil
}

// Timeout returns the round trip bound for one command
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// FieldConfig returns the accessor layout
func (c *Config) FieldConfig() *oemipmi.FieldConfig {
	return &oemipmi.FieldConfig{
		DeviceID:   c.FRU.DeviceID,
		FieldIndex: c.FRU.FieldIndex,
		FieldStart: c.FRU.FieldStart,
	}
}

// WriteVerify maps write_verify to the inventory setting
func (c *Config) WriteVerify() (oemipmi.WriteVerify, error) {
	switch strings.ToLower(c.FRU.WriteVerify) {
	case "", "field":
		return oemipmi.VerifyFieldLength, nil
	case "area":
		return oemipmi.VerifyAreaLength, nil
	default:
		return 0, fmt.Errorf("%w: write_verify %q (want field or area)", ErrInvalidConfig, c.FRU.WriteVerify)
	}
}

// InventoryOptions returns the inventory settings from the fru section
func (c *Config) InventoryOptions() []oemipmi.InventoryOption {
	verify, _ := c.WriteVerify()
	opts := []oemipmi.InventoryOption{
		oemipmi.WithFieldStart(c.FRU.FieldStart),
		oemipmi.WithWriteVerify(verify),
	}
	if c.FRU.MaxRead > 0 {
		opts = append(opts, oemipmi.WithMaxReadCount(c.FRU.MaxRead))
	}
	return opts
}

func (c *Config) detectionMode() (detection.Mode, error) {
	switch strings.ToLower(c.Detection.Mode) {
	case "", "safe":
		return detection.Safe, nil
	case "passive":
		return detection.Passive, nil
	default:
		return 0, fmt.Errorf("%w: detection mode %q (want safe or passive)", ErrInvalidConfig, c.Detection.Mode)
	}
}

// DetectionOptions returns the detection settings
func (c *Config) DetectionOptions() detection.Options {
	opts := detection.DefaultOptions()
	opts.Mode, _ = c.detectionMode()
	if c.Detection.TimeoutMs > 0 {
		opts.Timeout = time.Duration(c.Detection.TimeoutMs) * time.Millisecond
	}
	opts.IgnorePaths = append(opts.IgnorePaths, c.Detection.IgnorePaths...)
	opts.Blocklist = append(opts.Blocklist, c.Detection.Blocklist...)
	return opts
}

// SessionLogOptions returns the rotation settings for the session log
func (c *Config) SessionLogOptions() *oemipmi.SessionLogOptions {
	return &oemipmi.SessionLogOptions{
		Dir:        c.Log.SessionDir,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
