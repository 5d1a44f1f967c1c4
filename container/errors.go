package container

import "errors"

var (
	// ErrTruncated indicates an encoded container ended before a complete field was read.
	ErrTruncated = errors.New("container: truncated encoding")

	// ErrFieldMismatch indicates a decoded field name or type does not match the schema.
	ErrFieldMismatch = errors.New("container: field mismatch")
)
