// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/locutus75/opencoin-historic/blindkey"
	"github.com/locutus75/opencoin-historic/currency"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.CurrencyID == "" || cfg.CurrencyName == "" {
		return ErrInvalidCurrency
	}

	if err := validateDenominations(cfg.Denominations); err != nil {
		return err
	}

	if cfg.KeyBits < blindkey.MinKeyBits {
		return fmt.Errorf("%w: %d < %d", ErrInvalidKeyBits, cfg.KeyBits, blindkey.MinKeyBits)
	}

	if cfg.KeyValidity < 0 {
		return ErrInvalidKeyValidity
	}

	switch cfg.LedgerBackend {
	case BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("%w: ledger %q", ErrInvalidBackend, cfg.LedgerBackend)
	}

	switch cfg.WalletBackend {
	case BackendBadger, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("%w: wallet %q", ErrInvalidBackend, cfg.WalletBackend)
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}

func validateDenominations(denominations []string) error {
	if len(denominations) == 0 {
		return fmt.Errorf("%w: none configured", ErrInvalidDenominations)
	}
	seen := make(map[string]bool, len(denominations))
	for _, d := range denominations {
		if _, err := currency.DenominationValue(d); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDenominations, err)
		}
		if seen[d] {
			return fmt.Errorf("%w: %q repeated", ErrInvalidDenominations, d)
		}
		seen[d] = true
	}
	return nil
}
