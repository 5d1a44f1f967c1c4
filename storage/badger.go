package storage

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// statePrefix prefixes the badger key of every state.
const statePrefix = "state/"

// BadgerStore implements Store on a badger key-value database.
type BadgerStore struct {
	db    *badger.DB
	codec Codec
}

var _ Store = (*BadgerStore)(nil)

// OpenBadgerStore opens or creates a badger database in dir. An empty dir
// opens an in-memory database. Badger's own log output goes to logger at
// the matching levels; a nil logger silences it.
func OpenBadgerStore(dir string, codec Codec, logger *logrus.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	opts = opts.WithLogger(logger.WithField("component", "badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", ErrIOFailure, err)
	}
	return &BadgerStore{db: db, codec: codec}, nil
}

func stateKey(currencyID string) []byte {
	return []byte(statePrefix + currencyID)
}

// Get implements Store.
func (b *BadgerStore) Get(currencyID string) (*State, error) {
	if currencyID == "" {
		return nil, ErrInvalidCurrencyID
	}
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(currencyID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return b.codec.Decode(data)
}

// Put implements Store.
func (b *BadgerStore) Put(currencyID string, s *State) error {
	if err := checkPut(currencyID, s); err != nil {
		return err
	}
	data, err := b.codec.Encode(s)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey(currencyID), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Delete implements Store.
func (b *BadgerStore) Delete(currencyID string) error {
	if currencyID == "" {
		return ErrInvalidCurrencyID
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		key := stateKey(currencyID)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// List implements Store.
func (b *BadgerStore) List() ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(statePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(statePrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
