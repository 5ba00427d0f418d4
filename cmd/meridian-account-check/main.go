// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/meridian-im/meridian/account"
	"github.com/meridian-im/meridian/lib/config"
	"github.com/meridian-im/meridian/lib/kvstore"
	"github.com/meridian-im/meridian/lib/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Handle --version before anything else.
	for _, argument := range os.Args[1:] {
		if argument == "--version" {
			fmt.Printf("meridian-account-check %s\n", version.Info())
			return 0
		}
	}

	var dbPath string
	var configPath string
	var expect string
	var full bool

	flagSet := pflag.NewFlagSet("meridian-account-check", pflag.ContinueOnError)
	flagSet.StringVar(&dbPath, "db", "", "account database path (overrides --config)")
	flagSet.StringVar(&configPath, "config", "", "meridian config file (default: $MERIDIAN_CONFIG)")
	flagSet.StringVar(&expect, "expect", "", "assert the registration state equals this value")
	flagSet.BoolVar(&full, "full", false, "print the full account record instead of just the state")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if arguments := flagSet.Args(); len(arguments) > 0 {
		fmt.Fprintf(os.Stderr, "error: unexpected argument: %s\n", arguments[0])
		printUsage(flagSet)
		return 2
	}

	var want account.RegistrationState
	if expect != "" {
		parsed, err := account.ParseRegistrationState(expect)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: --expect: %v\n", err)
			return 2
		}
		want = parsed
	}

	path, err := resolveDatabasePath(dbPath, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	store, err := kvstore.Open(kvstore.Config{Path: path, ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	defer store.Close()

	var state *account.AccountState
	err = store.Read(context.Background(), func(tx kvstore.ReadTx) error {
		var err error
		state, err = account.LoadState(tx)
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if full {
		printRecord(os.Stdout, state)
	} else if expect == "" {
		fmt.Println(state.RegistrationState())
	}

	if expect != "" && state.RegistrationState() != want {
		fmt.Fprintf(os.Stderr, "state is %s, expected %s\n", state.RegistrationState(), want)
		return 1
	}
	return 0
}

// resolveDatabasePath picks the account database location: an explicit
// --db wins, then an explicit --config file, then the MERIDIAN_CONFIG
// environment variable.
func resolveDatabasePath(dbPath, configPath string) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return "", fmt.Errorf("loading config %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			return "", err
		}
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return cfg.AccountDatabasePath(), nil
}

// printRecord writes the full account record, one field per line. The
// server auth token is reported as set or unset, never printed.
func printRecord(w io.Writer, state *account.AccountState) {
	fmt.Fprintf(w, "%-24s %s\n", "registration_state", state.RegistrationState())
	fmt.Fprintf(w, "%-24s %s\n", "number", orDash(state.StoredNumber().String()))
	fmt.Fprintf(w, "%-24s %s\n", "aci", orDash(state.StoredACI().String()))
	fmt.Fprintf(w, "%-24s %s\n", "pni", orDash(state.StoredPNI().String()))
	fmt.Fprintf(w, "%-24s %s\n", "registration_date", orDash(formatDate(state.RegistrationDate())))

	device := "-"
	if state.DeviceID() != 0 {
		device = fmt.Sprintf("%d", state.DeviceID())
		if state.IsPrimaryDevice() {
			device += " (primary)"
		}
	}
	fmt.Fprintf(w, "%-24s %s\n", "device_id", device)
	fmt.Fprintf(w, "%-24s %s\n", "device_name", orDash(state.DeviceName()))

	token := "unset"
	if state.ServerAuthToken() != "" {
		token = "set"
	}
	fmt.Fprintf(w, "%-24s %s\n", "server_auth_token", token)

	if state.IsReregistering() {
		fmt.Fprintf(w, "%-24s %s\n", "reregistration_number", state.ReregistrationNumber())
		fmt.Fprintf(w, "%-24s %s\n", "reregistration_aci", state.ReregistrationACI())
	}

	fmt.Fprintf(w, "%-24s %t\n", "onboarded", state.IsOnboarded())
	fmt.Fprintf(w, "%-24s %t\n", "transfer_in_progress", state.IsTransferInProgress())
	fmt.Fprintf(w, "%-24s %t\n", "was_transferred", state.WasTransferred())
	fmt.Fprintf(w, "%-24s %t\n", "manual_message_fetch", state.ManualMessageFetchEnabled())

	discoverable := "undefined"
	if state.HasDefinedDiscoverability() {
		discoverable = fmt.Sprintf("%t (set %s)",
			state.IsDiscoverableByNumber(), formatDate(state.DiscoverabilitySetAt()))
	}
	fmt.Fprintf(w, "%-24s %s\n", "discoverable_by_number", discoverable)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "\nusage: meridian-account-check [--db PATH | --config FILE] [--expect STATE] [--full]\n")
	fmt.Fprintf(os.Stderr, "\nflags:\n%s", flagSet.FlagUsages())
	fmt.Fprintf(os.Stderr, "\nstates: unregistered, registered, deregistered, reregistering\n")
	fmt.Fprintf(os.Stderr, "\nexit codes:\n")
	fmt.Fprintf(os.Stderr, "  0  state printed, or --expect matched\n")
	fmt.Fprintf(os.Stderr, "  1  --expect did not match\n")
	fmt.Fprintf(os.Stderr, "  2  error\n")
	fmt.Fprintf(os.Stderr, "\nenvironment:\n")
	fmt.Fprintf(os.Stderr, "  MERIDIAN_CONFIG  config file used when neither --db nor --config is given\n")
}
