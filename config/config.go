// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and validates the YAML configuration shared by the
// issuer, mint and wallet processes, and builds their logger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// Storage backends.
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// configFile is the configuration file name inside the data directory.
const configFile = "config.yaml"

// Config is the process configuration.
type Config struct {
	DataDir    string `yaml:"datadir"`
	ListenAddr string `yaml:"listen"`
	LogLevel   string `yaml:"loglevel"`
	LogFile    string `yaml:"logfile"`

	CurrencyName   string        `yaml:"currency_name"`
	CurrencyID     string        `yaml:"currency_id"`
	Denominations  []string      `yaml:"denominations"`
	KeyBits        int           `yaml:"key_bits"`
	KeyValidity    time.Duration `yaml:"key_validity"`
	MintLocation   string        `yaml:"mint_location"`
	IssuerLocation string        `yaml:"issuer_location"`

	// LedgerBackend is "bolt" or "memory".
	LedgerBackend string `yaml:"ledger_backend"`
	// WalletBackend is "badger", "file" or "memory".
	WalletBackend string `yaml:"wallet_backend"`

	// TraceMessages logs every protocol message at debug level.
	TraceMessages bool `yaml:"trace_messages"`
}

// DefaultDataDir returns ~/.opencoin, or .opencoin in the working directory
// when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opencoin"
	}
	return filepath.Join(home, ".opencoin")
}

// DefaultConfig returns a configuration for a small test currency.
func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		ListenAddr:     ":6789",
		LogLevel:       "info",
		CurrencyName:   "OpenCent",
		CurrencyID:     "ocent",
		Denominations:  []string{"0", "1", "2", "5", "10", "20"},
		KeyBits:        2048,
		KeyValidity:    30 * 24 * time.Hour,
		MintLocation:   "http://localhost:6789",
		IssuerLocation: "http://localhost:6789",
		LedgerBackend:  BackendBolt,
		WalletBackend:  BackendBadger,
	}
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFile)
}

// LoadConfig reads a YAML configuration file. Keys missing from the file
// keep their DefaultConfig values and unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	out := append([]byte("# OpenCoin Configuration\n"), data...)
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
