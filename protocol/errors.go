package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected matches every rejection, whatever its code.
	ErrRejected = errors.New("protocol: rejected")

	// ErrLedgerConflict matches rejections caused by an already spent serial.
	ErrLedgerConflict = errors.New("protocol: ledger conflict")

	// ErrCryptoFailure matches rejections caused by a signature that does not verify.
	ErrCryptoFailure = errors.New("protocol: crypto failure")

	// ErrDelayed indicates the request is pending and must be resumed later.
	ErrDelayed = errors.New("protocol: delayed")

	// ErrRefused indicates a receiver refused an announced sum.
	ErrRefused = errors.New("protocol: refused")

	// ErrInvalidMessage indicates a message is malformed.
	ErrInvalidMessage = errors.New("protocol: invalid message")
)

// RejectError is a rejection surfaced to a caller. Error returns the literal
// reason so callers comparing reason strings keep working.
type RejectError struct {
	Reason string
	Code   Code
}

func (e *RejectError) Error() string { return e.Reason }

// Is matches ErrRejected and the sentinel of the rejection code.
func (e *RejectError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return true
	case ErrLedgerConflict:
		return e.Code == CodeLedgerConflict
	case ErrCryptoFailure:
		return e.Code == CodeCryptoFailure
	}
	return false
}

// RefusedError carries the receiver's refusal message of an announce.
type RefusedError struct {
	Reason string
}

func (e *RefusedError) Error() string { return e.Reason }

// Is matches ErrRefused.
func (e *RefusedError) Is(target error) bool { return target == ErrRefused }

// Reject builds a RejectError.
func Reject(code Code, format string, args ...interface{}) *RejectError {
	return &RejectError{Code: code, Reason: fmt.Sprintf(format, args...)}
}
