// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ListenAddr", cfg.ListenAddr, ":6789"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"CurrencyID", cfg.CurrencyID, "ocent"},
		{"KeyBits", cfg.KeyBits, 2048},
		{"LedgerBackend", cfg.LedgerBackend, BackendBolt},
		{"WalletBackend", cfg.WalletBackend, BackendBadger},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
	if !reflect.DeepEqual(cfg.Denominations, []string{"0", "1", "2", "5", "10", "20"}) {
		t.Errorf("Denominations = %v", cfg.Denominations)
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := Config{
		DataDir:        "/tmp/test-opencoin",
		ListenAddr:     ":9000",
		LogLevel:       "debug",
		LogFile:        "/tmp/opencoin.log",
		CurrencyName:   "Test Cent",
		CurrencyID:     "tcent",
		Denominations:  []string{"1", "5"},
		KeyBits:        1024,
		KeyValidity:    90 * time.Minute,
		MintLocation:   "opencoin://mint.example.org",
		IssuerLocation: "http://issuer.example.org:6789",
		LedgerBackend:  BackendMemory,
		WalletBackend:  BackendFile,
		TraceMessages:  true,
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !reflect.DeepEqual(loaded, original) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

func TestSaveConfig_OutputContainsHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "# OpenCoin Configuration") {
		t.Error("saved config should start with header '# OpenCoin Configuration'")
	}
	for _, key := range []string{"datadir:", "listen:", "currency_id:", "denominations:", "key_validity: 720h0m0s"} {
		if !strings.Contains(content, key) {
			t.Errorf("saved config should contain %q", key)
		}
	}
}

// ---------------------------------------------------------------------------
// LoadConfig error tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("denominations: [1, 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig bad yaml: got %v, want ErrInvalidConfig", err)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `# only a few keys
currency_id: abc
loglevel: debug
key_validity: 2h
futurekey: ignored
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.CurrencyID != "abc" {
		t.Errorf("CurrencyID = %q, want %q", cfg.CurrencyID, "abc")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.KeyValidity != 2*time.Hour {
		t.Errorf("KeyValidity = %v, want 2h", cfg.KeyValidity)
	}
	if cfg.ListenAddr != ":6789" {
		t.Errorf("ListenAddr = %q, want default %q", cfg.ListenAddr, ":6789")
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "empty_datadir",
			modify:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrEmptyDataDir,
		},
		{
			name:    "bad_listen_addr",
			modify:  func(c *Config) { c.ListenAddr = "not-a-valid-addr" },
			wantErr: ErrInvalidListenAddr,
		},
		{
			name:    "bad_loglevel",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "empty_currency",
			modify:  func(c *Config) { c.CurrencyID = "" },
			wantErr: ErrInvalidCurrency,
		},
		{
			name:    "no_denominations",
			modify:  func(c *Config) { c.Denominations = nil },
			wantErr: ErrInvalidDenominations,
		},
		{
			name:    "fractional_denomination",
			modify:  func(c *Config) { c.Denominations = []string{"1", "0.5"} },
			wantErr: ErrInvalidDenominations,
		},
		{
			name:    "repeated_denomination",
			modify:  func(c *Config) { c.Denominations = []string{"5", "5"} },
			wantErr: ErrInvalidDenominations,
		},
		{
			name:    "small_keys",
			modify:  func(c *Config) { c.KeyBits = 512 },
			wantErr: ErrInvalidKeyBits,
		},
		{
			name:    "negative_validity",
			modify:  func(c *Config) { c.KeyValidity = -time.Second },
			wantErr: ErrInvalidKeyValidity,
		},
		{
			name:    "bad_ledger_backend",
			modify:  func(c *Config) { c.LedgerBackend = "postgres" },
			wantErr: ErrInvalidBackend,
		},
		{
			name:    "bad_wallet_backend",
			modify:  func(c *Config) { c.WalletBackend = BackendBolt },
			wantErr: ErrInvalidBackend,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"INFO", "Debug", "WARN", "Error"} {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with loglevel %q: %v", level, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ConfigPath / DefaultDataDir tests
// ---------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/home/user/.opencoin")
	want := filepath.Join("/home/user/.opencoin", "config.yaml")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

func TestDefaultDataDir_EndsWith_DotOpencoin(t *testing.T) {
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, ".opencoin") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".opencoin")
	}
}

// ---------------------------------------------------------------------------
// NewLogger tests
// ---------------------------------------------------------------------------

func TestNewLogger_Level(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	logger, closer, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer closer.Close()
	if logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want warn", logger.GetLevel())
	}
}

func TestNewLogger_File(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "opencoin.log")
	logger, closer, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.WithField("component", "test").Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q, want JSON entry", data)
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	if _, _, err := NewLogger(cfg); !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("NewLogger: got %v, want ErrInvalidLogLevel", err)
	}
}
