package storage

import (
	"sort"
	"sync"
)

// MemStore keeps encoded states in memory. Get always returns a fresh copy,
// so callers never share state with the store.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	codec   Codec
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemStore) Get(currencyID string) (*State, error) {
	m.mu.RLock()
	data, ok := m.records[currencyID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.codec.Decode(data)
}

// Put implements Store.
func (m *MemStore) Put(currencyID string, s *State) error {
	if err := checkPut(currencyID, s); err != nil {
		return err
	}
	data, err := m.codec.Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records[currencyID] = data
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *MemStore) Delete(currencyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[currencyID]; !ok {
		return ErrNotFound
	}
	delete(m.records, currencyID)
	return nil
}

// List implements Store.
func (m *MemStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements Store.
func (m *MemStore) Close() error { return nil }
