package blindkey

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("blindkey: required parameter is nil")

	// ErrInvalidKey indicates a key is missing its modulus or exponent.
	ErrInvalidKey = errors.New("blindkey: invalid key")

	// ErrKeySize indicates the requested modulus size is too small.
	ErrKeySize = errors.New("blindkey: key size too small")

	// ErrMessageRange indicates a message is negative or not smaller than the modulus.
	ErrMessageRange = errors.New("blindkey: message out of range")

	// ErrNotInvertible indicates a blinding secret shares a factor with the modulus.
	ErrNotInvertible = errors.New("blindkey: blinding secret not invertible")
)
