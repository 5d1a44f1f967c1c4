package ledger

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("ledger: required parameter is nil")

	// ErrNotFound indicates no record or transfer exists for a transaction id.
	ErrNotFound = errors.New("ledger: not found")

	// ErrInvalidRecord indicates a record is missing its transaction id or carries an invalid status.
	ErrInvalidRecord = errors.New("ledger: invalid record")

	// ErrClosed indicates the ledger has been closed.
	ErrClosed = errors.New("ledger: closed")
)
