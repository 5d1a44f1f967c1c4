package authorizer

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("authorizer: required parameter is nil")

	// ErrSignFailed indicates the approval could not be signed.
	ErrSignFailed = errors.New("authorizer: failed to sign approval")
)
