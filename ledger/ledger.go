// Package ledger is the issuer's record of accepted transactions and spent
// serials, plus the durable queue of mint transfers that are still pending.
//
// The ledger is the only mutable state shared by every wallet of a currency.
// TryRecord checks and marks serials in one atomic step so that two
// transactions presenting the same serial can never both be accepted.
package ledger

import (
	"fmt"
	"math/big"
	"slices"
	"time"
)

// Status is the state of a transaction.
type Status uint8

const (
	StatusPending Status = iota
	StatusAccepted
	StatusRejected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Direction tells which way value moves through a transaction.
type Direction uint8

const (
	// DirectionIssue mints new coins only.
	DirectionIssue Direction = iota
	// DirectionRedeem retires coins only.
	DirectionRedeem
	// DirectionExchange retires coins and mints fresh ones.
	DirectionExchange
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIssue:
		return "issue"
	case DirectionRedeem:
		return "redeem"
	case DirectionExchange:
		return "exchange"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Record is the ledger entry of one transaction.
type Record struct {
	TransactionID string
	Status        Status
	Direction     Direction
	Serials       []string // hex serials retired by the transaction
	Target        string
	Issued        uint64 // value of the coins minted by the transaction
	Reason        string
	CreatedAt     time.Time
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Serials = append([]string(nil), r.Serials...)
	return &out
}

// Transfer is a mint-side transfer kept until it reaches a terminal state.
// Request holds the encoded transfer request so a pending transfer can be
// re-run after a restart.
type Transfer struct {
	TransactionID string
	Status        Status
	Request       []byte
	Signatures    []*big.Int
	Reason        string
	Code          string
	UpdatedAt     time.Time
}

// Clone returns a deep copy of t.
func (t *Transfer) Clone() *Transfer {
	if t == nil {
		return nil
	}
	out := *t
	out.Request = append([]byte(nil), t.Request...)
	if t.Signatures != nil {
		out.Signatures = make([]*big.Int, len(t.Signatures))
		for i, s := range t.Signatures {
			if s != nil {
				out.Signatures[i] = new(big.Int).Set(s)
			}
		}
	}
	return &out
}

// Ledger records transactions and spent serials.
type Ledger interface {
	// TryRecord resolves a transaction. The first terminal record stored for
	// a transaction id wins and is returned unchanged when the same
	// transaction is recorded again. A different transaction under a used id
	// is rejected without touching the stored record. Otherwise the record is
	// accepted and its serials marked spent, or rejected when any serial is
	// already spent or repeated. Nothing is marked on rejection.
	TryRecord(rec *Record) (*Record, error)

	// IsSpent reports whether a serial belongs to an accepted transaction.
	IsSpent(serial string) (bool, error)

	// Get returns the record of a transaction or ErrNotFound.
	Get(tid string) (*Record, error)

	// Close releases the underlying resources.
	Close() error
}

// Queue keeps mint transfers durable between resume polls.
type Queue interface {
	// PutTransfer stores or replaces the transfer for its transaction id.
	PutTransfer(t *Transfer) error

	// GetTransfer returns the transfer of a transaction or ErrNotFound.
	GetTransfer(tid string) (*Transfer, error)
}

// Keyring keeps the key material of an issuer and its mint next to the
// ledger, so that both come back with the same keys after a restart.
type Keyring interface {
	// PutKeys stores data under name, replacing any earlier value.
	PutKeys(name string, data []byte) error

	// GetKeys returns the data stored under name or ErrNotFound.
	GetKeys(name string) ([]byte, error)
}

// prepare validates rec and returns the copy that will be stored.
func prepare(rec *Record, now time.Time) (*Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: record", ErrNilParam)
	}
	if rec.TransactionID == "" {
		return nil, fmt.Errorf("%w: empty transaction id", ErrInvalidRecord)
	}
	out := rec.Clone()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	return out, nil
}

// conflict returns the first serial of rec that is repeated in rec or
// already spent according to spent.
func conflict(rec *Record, spent func(serial string) bool) (string, bool) {
	seen := make(map[string]bool, len(rec.Serials))
	for _, s := range rec.Serials {
		if seen[s] || spent(s) {
			return s, true
		}
		seen[s] = true
	}
	return "", false
}

// Same reports whether b records the same transaction as a: equal
// direction, issued value and retired serials in order.
func Same(a, b *Record) bool {
	return a.Direction == b.Direction &&
		a.Issued == b.Issued &&
		slices.Equal(a.Serials, b.Serials)
}

// resolveExisting answers a record whose id already has a terminal entry.
func resolveExisting(existing, rec *Record) *Record {
	if Same(existing, rec) {
		return existing.Clone()
	}
	out := rec.Clone()
	out.Status = StatusRejected
	out.Reason = fmt.Sprintf("transaction id %s already used for another transaction", rec.TransactionID)
	return out
}

func reject(rec *Record, serial string) {
	rec.Status = StatusRejected
	rec.Reason = fmt.Sprintf("serial %s already spent", serial)
}

func validTransfer(t *Transfer) error {
	if t == nil {
		return fmt.Errorf("%w: transfer", ErrNilParam)
	}
	if t.TransactionID == "" {
		return fmt.Errorf("%w: empty transaction id", ErrInvalidRecord)
	}
	return nil
}
