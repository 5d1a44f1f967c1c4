package mint

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("mint: required parameter is nil")

	// ErrUnavailable indicates the issuer ledger cannot record right now.
	// The mint answers with a delay and keeps the transfer pending.
	ErrUnavailable = errors.New("mint: issuer unavailable")

	// ErrNoCurrency indicates no currency description has been set.
	ErrNoCurrency = errors.New("mint: no currency description")

	// ErrUnknownKey indicates a key id the mint has never held.
	ErrUnknownKey = errors.New("mint: unknown key id")

	// ErrInvalidCertificate indicates a certificate that does not match the
	// currency or a staged key.
	ErrInvalidCertificate = errors.New("mint: invalid mint key certificate")
)
