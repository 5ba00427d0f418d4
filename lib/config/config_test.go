// Copyright 2026 The Meridian Authors
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

	if cfg.DataDir == "" {
		t.Error("expected non-empty default data_dir")
	}

	if cfg.Account.DatabaseFile != "account.db" {
		t.Errorf("expected database_file=account.db, got %s", cfg.Account.DatabaseFile)
	}

	if cfg.Account.PollInterval != "5s" {
		t.Errorf("expected poll_interval=5s, got %s", cfg.Account.PollInterval)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresMeridianConfig(t *testing.T) {
	// Save and restore MERIDIAN_CONFIG.
	origConfig := os.Getenv("MERIDIAN_CONFIG")
	defer os.Setenv("MERIDIAN_CONFIG", origConfig)

	// Unset MERIDIAN_CONFIG - Load() should fail.
	os.Unsetenv("MERIDIAN_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when MERIDIAN_CONFIG not set, got nil")
	}

	expectedMsg := "MERIDIAN_CONFIG environment variable not set"
	if err.Error()[:len(expectedMsg)] != expectedMsg {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithMeridianConfig(t *testing.T) {
	// Save and restore MERIDIAN_CONFIG.
	origConfig := os.Getenv("MERIDIAN_CONFIG")
	defer os.Setenv("MERIDIAN_CONFIG", origConfig)

	// Create temp config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meridian.yaml")

	configContent := `
data_dir: /test/data
account:
  database_file: main.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Set MERIDIAN_CONFIG and load.
	os.Setenv("MERIDIAN_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DataDir != "/test/data" {
		t.Errorf("expected data_dir=/test/data, got %s", cfg.DataDir)
	}

	if cfg.Account.DatabaseFile != "main.db" {
		t.Errorf("expected database_file=main.db, got %s", cfg.Account.DatabaseFile)
	}
}

func TestLoadFile(t *testing.T) {
	// Create temp config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meridian.yaml")

	configContent := `
data_dir: /custom/data

account:
  database_file: accounts/primary.db
  poll_interval: 250ms
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.DataDir != "/custom/data" {
		t.Errorf("expected data_dir=/custom/data, got %s", cfg.DataDir)
	}

	if cfg.Account.DatabaseFile != "accounts/primary.db" {
		t.Errorf("expected database_file=accounts/primary.db, got %s", cfg.Account.DatabaseFile)
	}

	if cfg.Account.PollInterval != "250ms" {
		t.Errorf("expected poll_interval=250ms, got %s", cfg.Account.PollInterval)
	}

	interval, err := cfg.ObserverPollInterval()
	if err != nil {
		t.Fatalf("ObserverPollInterval failed: %v", err)
	}
	if interval != 250*time.Millisecond {
		t.Errorf("expected interval=250ms, got %s", interval)
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meridian.yaml")

	// Only data_dir set; account settings come from defaults.
	configContent := `
data_dir: /partial/data
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.DataDir != "/partial/data" {
		t.Errorf("expected data_dir=/partial/data, got %s", cfg.DataDir)
	}

	if cfg.Account.DatabaseFile != "account.db" {
		t.Errorf("expected default database_file=account.db, got %s", cfg.Account.DatabaseFile)
	}

	if cfg.Account.PollInterval != "5s" {
		t.Errorf("expected default poll_interval=5s, got %s", cfg.Account.PollInterval)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Verify that environment variables do NOT override config file values.
	// The config file is the single source of truth for deterministic configuration.

	// Save and restore env vars.
	origData := os.Getenv("MERIDIAN_DATA_DIR")
	origDB := os.Getenv("MERIDIAN_ACCOUNT_DB")
	defer func() {
		os.Setenv("MERIDIAN_DATA_DIR", origData)
		os.Setenv("MERIDIAN_ACCOUNT_DB", origDB)
	}()

	// Set env vars that should be ignored.
	os.Setenv("MERIDIAN_DATA_DIR", "/env/data")
	os.Setenv("MERIDIAN_ACCOUNT_DB", "/env/account.db")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meridian.yaml")

	configContent := `
data_dir: /file/data
account:
  database_file: /file/account.db
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// File values should be used, NOT env vars.
	if cfg.DataDir != "/file/data" {
		t.Errorf("expected data_dir=/file/data from file, got %s (env vars should not override)", cfg.DataDir)
	}

	if cfg.Account.DatabaseFile != "/file/account.db" {
		t.Errorf("expected database_file=/file/account.db from file, got %s (env vars should not override)", cfg.Account.DatabaseFile)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/meridian",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/meridian",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestExpandDataDirInDatabaseFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meridian.yaml")

	configContent := `
data_dir: /var/lib/meridian
account:
  database_file: ${MERIDIAN_DATA_DIR}/db/account.db
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Account.DatabaseFile != "/var/lib/meridian/db/account.db" {
		t.Errorf("expected expanded database_file, got %s", cfg.Account.DatabaseFile)
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
			name: "empty data_dir",
			modify: func(c *Config) {
				c.DataDir = ""
			},
			wantErr: true,
		},
		{
			name: "empty database_file",
			modify: func(c *Config) {
				c.Account.DatabaseFile = ""
			},
			wantErr: true,
		},
		{
			name: "empty poll_interval",
			modify: func(c *Config) {
				c.Account.PollInterval = ""
			},
			wantErr: true,
		},
		{
			name: "malformed poll_interval",
			modify: func(c *Config) {
				c.Account.PollInterval = "often"
			},
			wantErr: true,
		},
		{
			name: "negative poll_interval",
			modify: func(c *Config) {
				c.Account.PollInterval = "-5s"
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

func TestAccountDatabasePath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"
	cfg.Account.DatabaseFile = "account.db"

	if got := cfg.AccountDatabasePath(); got != "/data/account.db" {
		t.Errorf("relative file: got %s, want /data/account.db", got)
	}

	cfg.Account.DatabaseFile = "/elsewhere/account.db"
	if got := cfg.AccountDatabasePath(); got != "/elsewhere/account.db" {
		t.Errorf("absolute file: got %s, want /elsewhere/account.db", got)
	}
}

func TestEnsureDataDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.DataDir = filepath.Join(tmpDir, "meridian")

	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir failed: %v", err)
	}

	info, err := os.Stat(cfg.DataDir)
	if err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("data dir %s is not a directory", cfg.DataDir)
	}
	if got := info.Mode().Perm(); got != 0700 {
		t.Errorf("data dir mode: got %o, want 0700", got)
	}
}
