package coin

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("coin: required parameter is nil")

	// ErrBlank indicates a coin carries no signature yet.
	ErrBlank = errors.New("coin: blank has no signature")

	// ErrKeyMismatch indicates a coin does not belong to the given mint key certificate.
	ErrKeyMismatch = errors.New("coin: coin does not match mint key")

	// ErrBadSignature indicates a coin signature does not verify.
	ErrBadSignature = errors.New("coin: bad signature")

	// ErrInvalidSerial indicates a serial of the wrong size.
	ErrInvalidSerial = errors.New("coin: invalid serial")

	// ErrOverflow indicates a total value that does not fit in 64 bits.
	ErrOverflow = errors.New("coin: value overflow")
)
