package currency

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("currency: required parameter is nil")

	// ErrInvalidCDD indicates a currency description document is malformed.
	ErrInvalidCDD = errors.New("currency: invalid currency description")

	// ErrInvalidDenomination indicates a denomination is not a canonical non-negative integer.
	ErrInvalidDenomination = errors.New("currency: invalid denomination")

	// ErrUnknownDenomination indicates a denomination is not declared by the currency.
	ErrUnknownDenomination = errors.New("currency: unknown denomination")

	// ErrCurrencyMismatch indicates an artifact belongs to another currency.
	ErrCurrencyMismatch = errors.New("currency: currency mismatch")

	// ErrKeyIDMismatch indicates a certificate key id does not match its key.
	ErrKeyIDMismatch = errors.New("currency: key id does not match public key")

	// ErrBadSignature indicates a signature does not verify.
	ErrBadSignature = errors.New("currency: bad signature")

	// ErrExpired indicates a mint key certificate is outside its validity window.
	ErrExpired = errors.New("currency: certificate not valid at this time")
)
