package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
)

// stateExt is the file extension of a stored state.
const stateExt = ".state"

// FileStore implements Store using the local filesystem.
// Files are stored at: {baseDir}/{hex(h[:1])}/{hex(h)}.state where
// h = BLAKE3(currencyID). The first byte (2 hex chars) is used as a
// subdirectory for sharding.
type FileStore struct {
	baseDir string
	codec   Codec
	mu      sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a new file-based state store. The directory is
// created if it does not exist.
func NewFileStore(baseDir string, codec Codec) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &FileStore{baseDir: baseDir, codec: codec}, nil
}

// CurrencyPath converts a currency id to its filesystem path.
// Uses first byte as subdirectory for sharding: {base}/{ab}/{abcdef...}.state
func CurrencyPath(baseDir, currencyID string) string {
	sum := blake3.Sum256([]byte(currencyID))
	hexHash := hex.EncodeToString(sum[:])
	return filepath.Join(baseDir, hexHash[:2], hexHash+stateExt)
}

// Get implements Store.
func (fs *FileStore) Get(currencyID string) (*State, error) {
	if currencyID == "" {
		return nil, ErrInvalidCurrencyID
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(CurrencyPath(fs.baseDir, currencyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	s, err := fs.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	if s.CurrencyID != currencyID {
		return nil, fmt.Errorf("%w: file holds %q", ErrCorrupt, s.CurrencyID)
	}
	return s, nil
}

// Put implements Store. The record is written to a temporary file and
// renamed into place.
func (fs *FileStore) Put(currencyID string, s *State) error {
	if err := checkPut(currencyID, s); err != nil {
		return err
	}
	data, err := fs.codec.Encode(s)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := CurrencyPath(fs.baseDir, currencyID)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Delete implements Store.
func (fs *FileStore) Delete(currencyID string) error {
	if currencyID == "" {
		return ErrInvalidCurrencyID
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(CurrencyPath(fs.baseDir, currencyID))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// List implements Store. File names are hashes, so every record is decoded
// to learn its currency id.
func (fs *FileStore) List() ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var ids []string
	for _, entry := range entries {
		// Shard directories are 2-character hex strings
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		shardPath := filepath.Join(fs.baseDir, entry.Name())
		files, err := os.ReadDir(shardPath)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), stateExt) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(shardPath, f.Name()))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
			}
			s, err := fs.codec.Decode(data)
			if err != nil {
				if errors.Is(err, ErrCorrupt) {
					continue
				}
				return nil, err
			}
			ids = append(ids, s.CurrencyID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements Store.
func (fs *FileStore) Close() error { return nil }
