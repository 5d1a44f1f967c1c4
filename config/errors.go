// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfig indicates the configuration file is not valid YAML.
	ErrInvalidConfig = errors.New("config: invalid configuration file")

	// ErrInvalidCurrency indicates the currency id or name is empty.
	ErrInvalidCurrency = errors.New("config: currency id and name must not be empty")

	// ErrInvalidDenominations indicates the denomination list is empty, repeats a value or holds a non-integer.
	ErrInvalidDenominations = errors.New("config: invalid denominations")

	// ErrInvalidKeyBits indicates the RSA modulus size is too small.
	ErrInvalidKeyBits = errors.New("config: key size too small")

	// ErrInvalidKeyValidity indicates a negative mint key validity.
	ErrInvalidKeyValidity = errors.New("config: key validity must not be negative")

	// ErrInvalidBackend indicates an unknown ledger or wallet backend.
	ErrInvalidBackend = errors.New("config: invalid storage backend")
)
