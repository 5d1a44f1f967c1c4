// Package wallet holds coins of one or more currencies. It withdraws coins
// from a mint, redeems them, and moves them between wallets with the
// announce/spend handshake.
//
// Sender side:
//
//	w.AnnounceSum(ctx, peer, tid, amount, target)
//	w.RequestSpend(ctx, peer, currencyID, tid, coins)
//
// Receiver side: serve w.Listener() as a network.WalletService. Received
// coins are exchanged at the mint for fresh ones before they are credited,
// so a double spend is caught by the issuer ledger.
package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/network"
	"github.com/locutus75/opencoin-historic/storage"
)

// transactionIDSize is the number of random bytes in a transaction id.
const transactionIDSize = 16

// Options configures a Wallet.
type Options struct {
	// Approval decides on announced sums. Nil accepts everything.
	Approval Approval

	Logger *logrus.Logger
	Now    func() time.Time
}

// Wallet is a coin purse backed by a storage.Store.
type Wallet struct {
	store storage.Store

	// stateMu serializes read-modify-write cycles on the store. It is never
	// held across a network call.
	stateMu sync.Mutex

	mu            sync.RWMutex
	issuers       map[string]network.IssuerService
	approval      Approval
	announcements map[string]*announcement

	logger *logrus.Logger
	now    func() time.Time
}

// announcement is an accepted AnnounceSum waiting for its RequestSpend.
type announcement struct {
	amount uint64
	target string
}

// New creates a wallet on store.
func New(store storage.Store, opts Options) (*Wallet, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	w := &Wallet{
		store:         store,
		issuers:       make(map[string]network.IssuerService),
		approval:      opts.Approval,
		announcements: make(map[string]*announcement),
		logger:        opts.Logger,
		now:           opts.Now,
	}
	if w.approval == nil {
		w.approval = ApproveAll
	}
	if w.logger == nil {
		w.logger = logrus.New()
		w.logger.SetOutput(io.Discard)
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w, nil
}

func (w *Wallet) log() *logrus.Entry {
	return w.logger.WithField("component", "wallet")
}

// Close closes the underlying store.
func (w *Wallet) Close() error { return w.store.Close() }

// AddIssuer registers the issuer service of a currency.
func (w *Wallet) AddIssuer(currencyID string, svc network.IssuerService) {
	w.mu.Lock()
	w.issuers[currencyID] = svc
	w.mu.Unlock()
}

func (w *Wallet) issuer(currencyID string) (network.IssuerService, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	svc, ok := w.issuers[currencyID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoIssuer, currencyID)
	}
	return svc, nil
}

// SetApproval replaces the policy applied to announced sums.
func (w *Wallet) SetApproval(a Approval) {
	if a == nil {
		a = ApproveAll
	}
	w.mu.Lock()
	w.approval = a
	w.mu.Unlock()
}

func (w *Wallet) getApproval() Approval {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.approval
}

// State returns a copy of the stored state of a currency. A currency the
// wallet never saw yields an empty state.
func (w *Wallet) State(currencyID string) (*storage.State, error) {
	s, err := w.store.Get(currencyID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.NewState(currencyID), nil
	}
	return s, err
}

// update applies fn to the state of a currency and stores the result unless
// fn fails.
func (w *Wallet) update(currencyID string, fn func(s *storage.State) error) error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	s, err := w.State(currencyID)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return w.store.Put(currencyID, s)
}

// Coins returns the coins held in a currency.
func (w *Wallet) Coins(currencyID string) ([]*coin.Coin, error) {
	s, err := w.State(currencyID)
	if err != nil {
		return nil, err
	}
	return s.Coins, nil
}

// Balance returns the total value held in a currency.
func (w *Wallet) Balance(currencyID string) (uint64, error) {
	s, err := w.State(currencyID)
	if err != nil {
		return 0, err
	}
	return s.Balance()
}

// Currencies returns the ids of every currency with stored state.
func (w *Wallet) Currencies() ([]string, error) {
	return w.store.List()
}

// NewTransactionID draws a random transaction id.
func NewTransactionID() (string, error) {
	b := make([]byte, transactionIDSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("wallet: transaction id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
