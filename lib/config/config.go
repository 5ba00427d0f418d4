// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the device configuration for Meridian components.
type Config struct {
	// DataDir is the base directory for Meridian data. All relative
	// file paths in the configuration resolve against it.
	DataDir string `yaml:"data_dir"`

	// Account configures the account database and its observer.
	Account AccountConfig `yaml:"account"`
}

// AccountConfig configures the account state store.
type AccountConfig struct {
	// DatabaseFile is the account database file. Relative paths
	// resolve against DataDir; absolute paths are used as-is.
	// Default: account.db
	DatabaseFile string `yaml:"database_file"`

	// PollInterval is how often the change observer checks the
	// database for commits by other processes, as a Go duration
	// string. Default: 5s
	PollInterval string `yaml:"poll_interval"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback -
// the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(homeDir, ".local", "share", "meridian"),
		Account: AccountConfig{
			DatabaseFile: "account.db",
			PollInterval: "5s",
		},
	}
}

// Load loads configuration from the MERIDIAN_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if MERIDIAN_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration with
// no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("MERIDIAN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("MERIDIAN_CONFIG environment variable not set; " +
			"set it to the path of your meridian.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values - this ensures deterministic, auditable
// configuration. The only expansion performed is ${HOME} and similar
// path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"MERIDIAN_DATA_DIR": c.DataDir,
		"HOME":              os.Getenv("HOME"),
	}

	c.DataDir = expandVars(c.DataDir, vars)
	vars["MERIDIAN_DATA_DIR"] = c.DataDir // Update for dependent paths.

	c.Account.DatabaseFile = expandVars(c.Account.DatabaseFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}

	if c.Account.DatabaseFile == "" {
		errs = append(errs, fmt.Errorf("account.database_file is required"))
	}

	if c.Account.PollInterval == "" {
		errs = append(errs, fmt.Errorf("account.poll_interval is required"))
	} else if interval, err := time.ParseDuration(c.Account.PollInterval); err != nil {
		errs = append(errs, fmt.Errorf("account.poll_interval: %w", err))
	} else if interval <= 0 {
		errs = append(errs, fmt.Errorf("account.poll_interval must be positive, got %s", c.Account.PollInterval))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// AccountDatabasePath returns the resolved path of the account
// database file.
func (c *Config) AccountDatabasePath() string {
	if filepath.IsAbs(c.Account.DatabaseFile) {
		return c.Account.DatabaseFile
	}
	return filepath.Join(c.DataDir, c.Account.DatabaseFile)
}

// ObserverPollInterval returns the parsed observer poll interval.
func (c *Config) ObserverPollInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.Account.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("account.poll_interval: %w", err)
	}
	return interval, nil
}

// EnsureDataDir creates the data directory if it does not exist.
// Account data is private to the device owner, so the directory is
// created mode 0700.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", c.DataDir, err)
	}
	return nil
}
