package issuer

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("issuer: nil parameter")

	// ErrNoMasterKey indicates the master key has not been created.
	ErrNoMasterKey = errors.New("issuer: no master key")

	// ErrNoCDD indicates no currency description has been published.
	ErrNoCDD = errors.New("issuer: no currency description")

	// ErrUnknownKey indicates a mint key id is not registered.
	ErrUnknownKey = errors.New("issuer: unknown mint key")

	// ErrUnknownDenomination indicates no current mint key exists for a denomination.
	ErrUnknownDenomination = errors.New("issuer: no mint key for denomination")

	// ErrInvalidValidity indicates a certificate validity window is empty.
	ErrInvalidValidity = errors.New("issuer: invalid validity window")

	// ErrUnknownBackend indicates the configured ledger backend is not supported.
	ErrUnknownBackend = errors.New("issuer: unknown ledger backend")
)
