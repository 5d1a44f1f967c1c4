package ledger

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketRecords   = []byte("records")
	bucketSerials   = []byte("serials")
	bucketTransfers = []byte("transfers")
	bucketKeyring   = []byte("keyring")
)

// BoltLedger is a durable Ledger and Queue in a bbolt database. Every
// TryRecord runs in a single read-write transaction, and bbolt allows only
// one of those at a time.
type BoltLedger struct {
	db  *bbolt.DB
	now func() time.Time
}

var (
	_ Ledger  = (*BoltLedger)(nil)
	_ Queue   = (*BoltLedger)(nil)
	_ Keyring = (*BoltLedger)(nil)
)

// OpenBoltLedger opens or creates the ledger database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketSerials, bucketTransfers, bucketKeyring} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltLedger{db: db, now: time.Now}, nil
}

// Close implements Ledger.
func (l *BoltLedger) Close() error { return l.db.Close() }

// TryRecord implements Ledger.
func (l *BoltLedger) TryRecord(rec *Record) (*Record, error) {
	out, err := prepare(rec, l.now())
	if err != nil {
		return nil, err
	}

	var result *Record
	err = l.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		serials := tx.Bucket(bucketSerials)
		key := []byte(out.TransactionID)

		if data := records.Get(key); data != nil {
			var existing Record
			if err := decodeGob(data, &existing); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			if existing.Status.Terminal() {
				result = resolveExisting(&existing, out)
				return nil
			}
		}

		spent := func(s string) bool { return serials.Get([]byte(s)) != nil }
		if serial, bad := conflict(out, spent); bad {
			reject(out, serial)
		} else {
			for _, s := range out.Serials {
				if err := serials.Put([]byte(s), key); err != nil {
					return fmt.Errorf("put serial: %w", err)
				}
			}
			out.Status = StatusAccepted
		}

		data, err := encodeGob(out)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if err := records.Put(key, data); err != nil {
			return fmt.Errorf("put record: %w", err)
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: record %q: %w", out.TransactionID, err)
	}
	return result.Clone(), nil
}

// IsSpent implements Ledger.
func (l *BoltLedger) IsSpent(serial string) (bool, error) {
	var spent bool
	err := l.db.View(func(tx *bbolt.Tx) error {
		spent = tx.Bucket(bucketSerials).Get([]byte(serial)) != nil
		return nil
	})
	return spent, err
}

// Get implements Ledger.
func (l *BoltLedger) Get(tid string) (*Record, error) {
	var rec Record
	err := l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(tid))
		if data == nil {
			return fmt.Errorf("%w: transaction %q", ErrNotFound, tid)
		}
		return decodeGob(data, &rec)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: decode record: %w", err)
	}
	return &rec, nil
}

// PutTransfer implements Queue.
func (l *BoltLedger) PutTransfer(t *Transfer) error {
	if err := validTransfer(t); err != nil {
		return err
	}
	cp := t.Clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = l.now()
	}
	data, err := encodeGob(cp)
	if err != nil {
		return fmt.Errorf("ledger: encode transfer: %w", err)
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketTransfers).Put([]byte(cp.TransactionID), data); err != nil {
			return fmt.Errorf("ledger: put transfer: %w", err)
		}
		return nil
	})
}

// GetTransfer implements Queue.
func (l *BoltLedger) GetTransfer(tid string) (*Transfer, error) {
	var t Transfer
	err := l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTransfers).Get([]byte(tid))
		if data == nil {
			return fmt.Errorf("%w: transfer %q", ErrNotFound, tid)
		}
		return decodeGob(data, &t)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: decode transfer: %w", err)
	}
	return &t, nil
}

// PutKeys implements Keyring.
func (l *BoltLedger) PutKeys(name string, data []byte) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketKeyring).Put([]byte(name), data); err != nil {
			return fmt.Errorf("ledger: put keys: %w", err)
		}
		return nil
	})
}

// GetKeys implements Keyring.
func (l *BoltLedger) GetKeys(name string) ([]byte, error) {
	var out []byte
	err := l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketKeyring).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: keys %q", ErrNotFound, name)
		}
		out = append([]byte(nil), data...)
		return nil
	})
	return out, err
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
