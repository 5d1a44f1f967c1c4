// Package storage persists wallet state: the trusted currency description,
// the mint key certificates, the coins owned and the transfers still waiting
// for the mint. One State is kept per currency.
package storage

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/currency"
)

// Store keeps one State per currency id.
type Store interface {
	// Get returns the state of a currency, or ErrNotFound.
	Get(currencyID string) (*State, error)

	// Put replaces the state of a currency.
	Put(currencyID string, s *State) error

	// Delete removes the state of a currency, or returns ErrNotFound.
	Delete(currencyID string) error

	// List returns the stored currency ids in sorted order.
	List() ([]string, error)

	// Close releases the store.
	Close() error
}

// PendingTransfer is a mint transfer the wallet sent but has not seen
// resolved yet. Blanks and Secrets are parallel: Secrets[i] unblinds the
// signature of Blanks[i]. Redeemed holds the clear coins handed in; they
// were received from a peer rather than owned when Exchange is set.
type PendingTransfer struct {
	TransactionID string       `json:"transactionId"`
	Target        string       `json:"target,omitempty"`
	Blanks        []*coin.Coin `json:"blanks,omitempty"`
	Secrets       []*big.Int   `json:"secrets,omitempty"`
	Redeemed      []*coin.Coin `json:"redeemed,omitempty"`
	Exchange      bool         `json:"exchange,omitempty"`
	Created       time.Time    `json:"created"`
}

// State is everything a wallet knows about one currency.
type State struct {
	CurrencyID string                                  `json:"currencyId"`
	CDD        *currency.CDD                           `json:"cdd,omitempty"`
	MintKeys   map[string]*currency.MintKeyCertificate `json:"mintKeys"`
	Coins      []*coin.Coin                            `json:"coins"`
	Pending    map[string]*PendingTransfer             `json:"pending"`
	Metadata   map[string]string                       `json:"metadata,omitempty"`
}

// NewState returns an empty state for a currency.
func NewState(currencyID string) *State {
	s := &State{CurrencyID: currencyID}
	s.init()
	return s
}

func (s *State) init() {
	if s.MintKeys == nil {
		s.MintKeys = make(map[string]*currency.MintKeyCertificate)
	}
	if s.Pending == nil {
		s.Pending = make(map[string]*PendingTransfer)
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
}

// Balance returns the total value of the coins held.
func (s *State) Balance() (uint64, error) {
	return coin.Sum(s.Coins)
}

// AddCoins appends coins to the state.
func (s *State) AddCoins(coins ...*coin.Coin) {
	s.Coins = append(s.Coins, coins...)
}

// RemoveCoins drops the coins with the given hex serials and returns how
// many were removed.
func (s *State) RemoveCoins(serials []string) int {
	drop := make(map[string]struct{}, len(serials))
	for _, sn := range serials {
		drop[sn] = struct{}{}
	}
	kept := s.Coins[:0]
	for _, c := range s.Coins {
		if _, ok := drop[c.SerialHex()]; ok {
			continue
		}
		kept = append(kept, c)
	}
	removed := len(s.Coins) - len(kept)
	for i := len(kept); i < len(s.Coins); i++ {
		s.Coins[i] = nil
	}
	s.Coins = kept
	return removed
}

// PendingIDs returns the transaction ids of pending transfers in sorted order.
func (s *State) PendingIDs() []string {
	ids := make([]string, 0, len(s.Pending))
	for id := range s.Pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// checkPut validates the arguments of Store.Put.
func checkPut(currencyID string, s *State) error {
	if currencyID == "" {
		return ErrInvalidCurrencyID
	}
	if s == nil {
		return ErrNilState
	}
	if s.CurrencyID != currencyID {
		return fmt.Errorf("%w: state of %q stored as %q", ErrInvalidCurrencyID, s.CurrencyID, currencyID)
	}
	return nil
}
