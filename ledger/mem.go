package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
)

// serialItem is a spent serial in the ordered index.
type serialItem struct {
	serial string
	tid    string
}

var _ btree.Item = serialItem{}

// Less implements btree.Item.
func (s serialItem) Less(than btree.Item) bool {
	return s.serial < than.(serialItem).serial
}

// MemLedger is an in-memory Ledger and Queue. A single mutex makes
// TryRecord one critical section.
type MemLedger struct {
	mu        sync.Mutex
	records   map[string]*Record
	spent     *btree.BTree
	transfers map[string]*Transfer
	keys      map[string][]byte
	closed    bool
	now       func() time.Time
}

var (
	_ Ledger  = (*MemLedger)(nil)
	_ Queue   = (*MemLedger)(nil)
	_ Keyring = (*MemLedger)(nil)
)

// NewMemLedger creates an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		records:   make(map[string]*Record),
		spent:     btree.New(2),
		transfers: make(map[string]*Transfer),
		keys:      make(map[string][]byte),
		now:       time.Now,
	}
}

// TryRecord implements Ledger.
func (l *MemLedger) TryRecord(rec *Record) (*Record, error) {
	out, err := prepare(rec, l.now())
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	if existing, ok := l.records[out.TransactionID]; ok && existing.Status.Terminal() {
		return resolveExisting(existing, out), nil
	}

	if serial, bad := conflict(out, l.isSpentLocked); bad {
		reject(out, serial)
		l.records[out.TransactionID] = out
		return out.Clone(), nil
	}

	for _, s := range out.Serials {
		l.spent.ReplaceOrInsert(serialItem{serial: s, tid: out.TransactionID})
	}
	out.Status = StatusAccepted
	l.records[out.TransactionID] = out
	return out.Clone(), nil
}

func (l *MemLedger) isSpentLocked(serial string) bool {
	return l.spent.Has(serialItem{serial: serial})
}

// IsSpent implements Ledger.
func (l *MemLedger) IsSpent(serial string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false, ErrClosed
	}
	return l.isSpentLocked(serial), nil
}

// Get implements Ledger.
func (l *MemLedger) Get(tid string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	rec, ok := l.records[tid]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %q", ErrNotFound, tid)
	}
	return rec.Clone(), nil
}

// SpentSerials returns every spent serial in ascending order.
func (l *MemLedger) SpentSerials() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, l.spent.Len())
	l.spent.Ascend(func(i btree.Item) bool {
		out = append(out, i.(serialItem).serial)
		return true
	})
	return out
}

// PutTransfer implements Queue.
func (l *MemLedger) PutTransfer(t *Transfer) error {
	if err := validTransfer(t); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	cp := t.Clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = l.now()
	}
	l.transfers[t.TransactionID] = cp
	return nil
}

// GetTransfer implements Queue.
func (l *MemLedger) GetTransfer(tid string) (*Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	t, ok := l.transfers[tid]
	if !ok {
		return nil, fmt.Errorf("%w: transfer %q", ErrNotFound, tid)
	}
	return t.Clone(), nil
}

// PutKeys implements Keyring.
func (l *MemLedger) PutKeys(name string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.keys[name] = append([]byte(nil), data...)
	return nil
}

// GetKeys implements Keyring.
func (l *MemLedger) GetKeys(name string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	data, ok := l.keys[name]
	if !ok {
		return nil, fmt.Errorf("%w: keys %q", ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

// Close implements Ledger.
func (l *MemLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
