// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Endpoints.ClientSocket != "/run/irdispatchd/irdispatchd" {
		t.Errorf("expected client_socket=/run/irdispatchd/irdispatchd, got %s", cfg.Endpoints.ClientSocket)
	}

	if cfg.Endpoints.BackendSocketMode != 0666 {
		t.Errorf("expected backend_socket_mode=0666, got %#o", cfg.Endpoints.BackendSocketMode)
	}

	if cfg.Tick.Interval != 50*time.Millisecond {
		t.Errorf("expected tick.interval=50ms, got %s", cfg.Tick.Interval)
	}

	if cfg.Tick.CommandTimeoutTicks != 20 {
		t.Errorf("expected command_timeout_ticks=20, got %d", cfg.Tick.CommandTimeoutTicks)
	}

	if cfg.Wire.MaxPacketSize != 256 {
		t.Errorf("expected max_packet_size=256, got %d", cfg.Wire.MaxPacketSize)
	}
}

func TestLoad_RequiresConfigEnvVar(t *testing.T) {
	origConfig := os.Getenv("IRDISPATCHD_CONFIG")
	defer os.Setenv("IRDISPATCHD_CONFIG", origConfig)

	os.Unsetenv("IRDISPATCHD_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when IRDISPATCHD_CONFIG not set, got nil")
	}

	expectedMsg := "IRDISPATCHD_CONFIG environment variable not set"
	if err.Error()[:len(expectedMsg)] != expectedMsg {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithConfigEnvVar(t *testing.T) {
	origConfig := os.Getenv("IRDISPATCHD_CONFIG")
	defer os.Setenv("IRDISPATCHD_CONFIG", origConfig)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "irdispatchd.yaml")

	configContent := `
endpoints:
  client_socket: /test/irdispatchd
  backend_socket: /test/irdispatchd.backend
  control_socket: /test/irdispatchd.control
pidfile: /test/irdispatchd.pid
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	os.Setenv("IRDISPATCHD_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Endpoints.ClientSocket != "/test/irdispatchd" {
		t.Errorf("expected client_socket=/test/irdispatchd, got %s", cfg.Endpoints.ClientSocket)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "irdispatchd.yaml")

	configContent := `
endpoints:
  client_socket: /custom/irdispatchd
  client_socket_mode: 384
  backend_socket: /custom/irdispatchd.backend
  control_socket: /custom/irdispatchd.control
  data_fifo_dir: /custom/fifos

tick:
  interval: 100ms
  command_timeout_ticks: 10

wire:
  max_packet_size: 512

pidfile: /custom/irdispatchd.pid

logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Endpoints.ClientSocket != "/custom/irdispatchd" {
		t.Errorf("expected client_socket=/custom/irdispatchd, got %s", cfg.Endpoints.ClientSocket)
	}

	if cfg.Endpoints.ClientSocketMode != 0600 {
		t.Errorf("expected client_socket_mode=0600, got %#o", cfg.Endpoints.ClientSocketMode)
	}

	if cfg.Endpoints.DataFifoDir != "/custom/fifos" {
		t.Errorf("expected data_fifo_dir=/custom/fifos, got %s", cfg.Endpoints.DataFifoDir)
	}

	if cfg.Tick.Interval != 100*time.Millisecond {
		t.Errorf("expected tick.interval=100ms, got %s", cfg.Tick.Interval)
	}

	if cfg.Tick.CommandTimeoutTicks != 10 {
		t.Errorf("expected command_timeout_ticks=10, got %d", cfg.Tick.CommandTimeoutTicks)
	}

	if cfg.Wire.MaxPacketSize != 512 {
		t.Errorf("expected max_packet_size=512, got %d", cfg.Wire.MaxPacketSize)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging.level=debug, got %s", cfg.Logging.Level)
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("expected logging.format=json, got %s", cfg.Logging.Format)
	}
}

func TestLoadFile_DataFifoDirDefaultsToClientSocketDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "irdispatchd.yaml")

	configContent := `
endpoints:
  client_socket: /custom/run/irdispatchd
  backend_socket: /custom/run/irdispatchd.backend
  control_socket: /custom/run/irdispatchd.control
pidfile: /custom/run/irdispatchd.pid
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Endpoints.DataFifoDir != "/custom/run" {
		t.Errorf("expected data_fifo_dir=/custom/run, got %s", cfg.Endpoints.DataFifoDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "empty client socket",
			modify: func(c *Config) {
				c.Endpoints.ClientSocket = ""
			},
			wantErr: true,
		},
		{
			name: "duplicate endpoint paths",
			modify: func(c *Config) {
				c.Endpoints.BackendSocket = c.Endpoints.ClientSocket
			},
			wantErr: true,
		},
		{
			name: "non-positive tick interval",
			modify: func(c *Config) {
				c.Tick.Interval = 0
			},
			wantErr: true,
		},
		{
			name: "non-positive timeout ticks",
			modify: func(c *Config) {
				c.Tick.CommandTimeoutTicks = 0
			},
			wantErr: true,
		},
		{
			name: "non-positive max packet size",
			modify: func(c *Config) {
				c.Wire.MaxPacketSize = 0
			},
			wantErr: true,
		},
		{
			name: "empty pidfile",
			modify: func(c *Config) {
				c.Pidfile = ""
			},
			wantErr: true,
		},
		{
			name: "invalid logging level",
			modify: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantErr: true,
		},
		{
			name: "invalid logging format",
			modify: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureRunDirs(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Endpoints.ClientSocket = filepath.Join(tmpDir, "run", "irdispatchd")
	cfg.Endpoints.BackendSocket = filepath.Join(tmpDir, "run", "irdispatchd.backend")
	cfg.Endpoints.ControlSocket = filepath.Join(tmpDir, "run", "irdispatchd.control")
	cfg.Endpoints.DataFifoDir = filepath.Join(tmpDir, "run")
	cfg.Pidfile = filepath.Join(tmpDir, "run", "irdispatchd.pid")

	if err := cfg.EnsureRunDirs(); err != nil {
		t.Fatalf("EnsureRunDirs failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(tmpDir, "run"))
	if err != nil {
		t.Fatalf("run dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("run dir is not a directory")
	}
}
