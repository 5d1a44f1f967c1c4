package storage

import "errors"

var (
	// ErrNotFound indicates no state exists for the given currency.
	ErrNotFound = errors.New("storage: state not found")

	// ErrInvalidCurrencyID indicates an empty or mismatched currency id.
	ErrInvalidCurrencyID = errors.New("storage: invalid currency id")

	// ErrNilState indicates an attempt to store a nil state.
	ErrNilState = errors.New("storage: nil state")

	// ErrIOFailure indicates a file or database read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrUnsupportedCompression indicates an unsupported compression scheme.
	ErrUnsupportedCompression = errors.New("storage: unsupported compression scheme")

	// ErrDecompressedTooLarge indicates decompressed data exceeds the safety limit.
	ErrDecompressedTooLarge = errors.New("storage: decompressed data exceeds maximum size")

	// ErrCorrupt indicates a stored record cannot be decoded.
	ErrCorrupt = errors.New("storage: corrupt record")

	// ErrPasswordRequired indicates a sealed record was read, or a record was
	// sealed, without a password.
	ErrPasswordRequired = errors.New("storage: password required")

	// ErrDecryptionFailed indicates a sealed record could not be opened.
	ErrDecryptionFailed = errors.New("storage: decryption failed (wrong password?)")

	// ErrChecksumMismatch indicates a sealed record opened but failed its checksum.
	ErrChecksumMismatch = errors.New("storage: checksum mismatch after decryption")
)
