// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for irdispatchd.
//
// Configuration is loaded from a single file specified by:
//   - IRDISPATCHD_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides. A daemon that multiplexes
// trust boundaries between clients, backends, and an operator control socket
// should not guess at its own socket paths.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for irdispatchd.
type Config struct {
	// Endpoints configures the three well-known listening sockets.
	Endpoints EndpointsConfig `yaml:"endpoints"`

	// Tick configures the periodic timeout-checking heartbeat.
	Tick TickConfig `yaml:"tick"`

	// Wire configures line-protocol limits.
	Wire WireConfig `yaml:"wire"`

	// Pidfile is the path to the advisory lock file that prevents two
	// daemon instances from binding the same endpoints.
	// Default: /run/irdispatchd/irdispatchd.pid
	Pidfile string `yaml:"pidfile"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`
}

// EndpointsConfig configures the three local-domain stream endpoints.
type EndpointsConfig struct {
	// ClientSocket is the path for the client endpoint (broadcast of
	// decoded input events and legacy single-backend command traffic).
	// Default: /run/irdispatchd/irdispatchd
	ClientSocket string `yaml:"client_socket"`

	// ClientSocketMode is the permission bits applied to ClientSocket.
	// Default: 0600 (the client endpoint carries no selector, so it is
	// the most sensitive of the three).
	ClientSocketMode uint32 `yaml:"client_socket_mode"`

	// BackendSocket is the path backends connect to in order to
	// register. Convention: ClientSocket + ".backend".
	// Default: /run/irdispatchd/irdispatchd.backend
	BackendSocket string `yaml:"backend_socket"`

	// BackendSocketMode is the permission bits applied to BackendSocket.
	// Default: 0666.
	BackendSocketMode uint32 `yaml:"backend_socket_mode"`

	// ControlSocket is the path for operator commands that can target a
	// specific backend by name. Convention: ClientSocket + ".control".
	// Default: /run/irdispatchd/irdispatchd.control
	ControlSocket string `yaml:"control_socket"`

	// ControlSocketMode is the permission bits applied to ControlSocket.
	// Default: 0666.
	ControlSocketMode uint32 `yaml:"control_socket_mode"`

	// DataFifoDir is the directory in which per-backend data fifos
	// (<client>-data-<cmdhandle>) are created. Default: directory
	// containing ClientSocket.
	DataFifoDir string `yaml:"data_fifo_dir"`

	// DataFifoMode is the permission bits applied to each data fifo.
	// Default: 0666.
	DataFifoMode uint32 `yaml:"data_fifo_mode"`
}

// TickConfig configures the tick service.
type TickConfig struct {
	// Interval is how often the tick fires. Default: 50ms.
	Interval time.Duration `yaml:"interval"`

	// CommandTimeoutTicks is the number of ticks a caller's binding may
	// remain outstanding before the tick service times it out.
	// Default: 20 (≈1s at the default 50ms interval).
	CommandTimeoutTicks int `yaml:"command_timeout_ticks"`
}

// WireConfig configures line-protocol limits.
type WireConfig struct {
	// MaxPacketSize is the maximum length, in bytes including the
	// trailing newline, of a single directive line. A connection that
	// exceeds this before completing a line is removed. Default: 256.
	MaxPacketSize int `yaml:"max_packet_size"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default: "info".
	Level string `yaml:"level"`

	// Format is one of "text" or "json". Default: "text".
	Format string `yaml:"format"`
}

// Default returns the default configuration. These defaults are used as
// a base before loading the config file; they exist to give every field
// a sensible zero-value, not as a substitute for an explicit config file.
func Default() *Config {
	const runDir = "/run/irdispatchd"

	return &Config{
		Endpoints: EndpointsConfig{
			ClientSocket:      filepath.Join(runDir, "irdispatchd"),
			ClientSocketMode:  0600,
			BackendSocket:     filepath.Join(runDir, "irdispatchd.backend"),
			BackendSocketMode: 0666,
			ControlSocket:     filepath.Join(runDir, "irdispatchd.control"),
			ControlSocketMode: 0666,
			DataFifoDir:       runDir,
			DataFifoMode:      0666,
		},
		Tick: TickConfig{
			Interval:            50 * time.Millisecond,
			CommandTimeoutTicks: 20,
		},
		Wire: WireConfig{
			MaxPacketSize: 256,
		},
		Pidfile: filepath.Join(runDir, "irdispatchd.pid"),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the IRDISPATCHD_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults — if IRDISPATCHD_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration with
// no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("IRDISPATCHD_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("IRDISPATCHD_CONFIG environment variable not set; " +
			"set it to the path of your irdispatchd.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth; fields absent from the
// file keep their Default value.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	// DataFifoDir's default depends on ClientSocket as read from the
	// file, so it is derived after unmarshalling.
	cfg.Endpoints.DataFifoDir = ""

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.Endpoints.DataFifoDir == "" {
		cfg.Endpoints.DataFifoDir = filepath.Dir(cfg.Endpoints.ClientSocket)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Endpoints.ClientSocket == "" {
		errs = append(errs, fmt.Errorf("endpoints.client_socket is required"))
	}
	if c.Endpoints.BackendSocket == "" {
		errs = append(errs, fmt.Errorf("endpoints.backend_socket is required"))
	}
	if c.Endpoints.ControlSocket == "" {
		errs = append(errs, fmt.Errorf("endpoints.control_socket is required"))
	}
	if c.Endpoints.ClientSocket == c.Endpoints.BackendSocket ||
		c.Endpoints.ClientSocket == c.Endpoints.ControlSocket ||
		c.Endpoints.BackendSocket == c.Endpoints.ControlSocket {
		errs = append(errs, fmt.Errorf("endpoints must have distinct socket paths"))
	}

	if c.Tick.Interval <= 0 {
		errs = append(errs, fmt.Errorf("tick.interval must be positive"))
	}
	if c.Tick.CommandTimeoutTicks <= 0 {
		errs = append(errs, fmt.Errorf("tick.command_timeout_ticks must be positive"))
	}

	if c.Wire.MaxPacketSize <= 0 {
		errs = append(errs, fmt.Errorf("wire.max_packet_size must be positive"))
	}

	if c.Pidfile == "" {
		errs = append(errs, fmt.Errorf("pidfile is required"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of: debug, info, warn, error"))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be one of: text, json"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureRunDirs creates the directories needed for the configured
// sockets, pidfile, and data fifos if they don't already exist.
func (c *Config) EnsureRunDirs() error {
	dirs := map[string]struct{}{
		filepath.Dir(c.Endpoints.ClientSocket):  {},
		filepath.Dir(c.Endpoints.BackendSocket): {},
		filepath.Dir(c.Endpoints.ControlSocket): {},
		c.Endpoints.DataFifoDir:                 {},
		filepath.Dir(c.Pidfile):                 {},
	}

	for dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return nil
}
