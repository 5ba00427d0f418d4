// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meridian-im/meridian/account"
	"github.com/meridian-im/meridian/lib/kvstore"
)

func TestResolveDatabasePath(t *testing.T) {
	t.Run("db flag wins", func(t *testing.T) {
		path, err := resolveDatabasePath("/explicit/account.db", "/nonexistent/config.yaml")
		if err != nil {
			t.Fatalf("resolveDatabasePath: %v", err)
		}
		if path != "/explicit/account.db" {
			t.Errorf("path = %q, want /explicit/account.db", path)
		}
	})

	t.Run("config file", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "meridian.yaml")
		content := `
data_dir: /srv/meridian
account:
  database_file: main.db
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("writing config: %v", err)
		}

		path, err := resolveDatabasePath("", configPath)
		if err != nil {
			t.Fatalf("resolveDatabasePath: %v", err)
		}
		if path != "/srv/meridian/main.db" {
			t.Errorf("path = %q, want /srv/meridian/main.db", path)
		}
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "meridian.yaml")
		content := `
data_dir: /srv/meridian
account:
  poll_interval: often
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("writing config: %v", err)
		}

		if _, err := resolveDatabasePath("", configPath); err == nil {
			t.Error("expected error for malformed poll_interval")
		}
	})

	t.Run("nothing given", func(t *testing.T) {
		origConfig := os.Getenv("MERIDIAN_CONFIG")
		defer os.Setenv("MERIDIAN_CONFIG", origConfig)
		os.Unsetenv("MERIDIAN_CONFIG")

		if _, err := resolveDatabasePath("", ""); err == nil {
			t.Error("expected error when no database location is given")
		}
	})
}

func TestPrintRecordFreshInstall(t *testing.T) {
	store, err := kvstore.Open(kvstore.Config{
		Path: filepath.Join(t.TempDir(), "account.db"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var state *account.AccountState
	err = store.Read(context.Background(), func(tx kvstore.ReadTx) error {
		var err error
		state, err = account.LoadState(tx)
		return err
	})
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	var output strings.Builder
	printRecord(&output, state)
	record := output.String()

	for _, want := range []string{
		"registration_state",
		"unregistered",
		"server_auth_token",
		"unset",
		"discoverable_by_number",
		"undefined",
	} {
		if !strings.Contains(record, want) {
			t.Errorf("record missing %q:\n%s", want, record)
		}
	}
	if strings.Contains(record, "reregistration_number") {
		t.Errorf("fresh install record shows reregistration fields:\n%s", record)
	}
}
