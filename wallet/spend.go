package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/network"
	"github.com/locutus75/opencoin-historic/protocol"
	"github.com/locutus75/opencoin-historic/storage"
)

// AnnounceSum tells peer that amount is about to be spent to it under tid.
// It returns nil when the peer accepts and a *protocol.RefusedError with
// the peer's message otherwise.
func (w *Wallet) AnnounceSum(ctx context.Context, peer network.WalletService, tid string, amount uint64, target string) error {
	if peer == nil {
		return fmt.Errorf("%w: peer", ErrNilParam)
	}
	resp, err := peer.AnnounceSum(ctx, &protocol.AnnounceSum{
		TransactionID: tid,
		Amount:        amount,
		Target:        target,
	})
	if err != nil {
		return fmt.Errorf("wallet: announce sum: %w", err)
	}
	return resp.Err()
}

// RequestSpend hands coins to peer for an announced tid. On accept and on
// delay the coins leave the wallet; a delay means the peer holds them while
// its mint exchange is pending. A ledger conflict also drops them because
// they are already spent. Any other rejection keeps them.
func (w *Wallet) RequestSpend(ctx context.Context, peer network.WalletService, currencyID, tid string, coins []*coin.Coin) error {
	if peer == nil {
		return fmt.Errorf("%w: peer", ErrNilParam)
	}
	resp, err := peer.RequestSpend(ctx, &protocol.RequestSpend{TransactionID: tid, Coins: coins})
	if err != nil {
		return fmt.Errorf("wallet: request spend: %w", err)
	}

	outcome := resp.Err()
	drop := outcome == nil ||
		errors.Is(outcome, protocol.ErrDelayed) ||
		errors.Is(outcome, protocol.ErrLedgerConflict)
	if drop {
		serials := coin.Serials(coins)
		if err := w.update(currencyID, func(s *storage.State) error {
			s.RemoveCoins(serials)
			return nil
		}); err != nil {
			return err
		}
	}

	w.log().WithFields(logrus.Fields{
		"currency": currencyID,
		"tid":      tid,
		"header":   resp.Header,
		"coins":    len(coins),
	}).Info("spend answered")
	return outcome
}

// SendCoins pays amount to peer: it picks held coins adding up to amount
// exactly, announces the sum and spends them. It returns the transaction id
// used.
func (w *Wallet) SendCoins(ctx context.Context, peer network.WalletService, currencyID string, amount uint64, target string) (string, error) {
	held, err := w.Coins(currencyID)
	if err != nil {
		return "", err
	}
	coins, err := pickCoins(held, amount)
	if err != nil {
		return "", err
	}
	tid, err := NewTransactionID()
	if err != nil {
		return "", err
	}
	if err := w.AnnounceSum(ctx, peer, tid, amount, target); err != nil {
		return tid, err
	}
	return tid, w.RequestSpend(ctx, peer, currencyID, tid, coins)
}

// pickCoins chooses coins whose values add up to amount, preferring large
// coins.
func pickCoins(held []*coin.Coin, amount uint64) ([]*coin.Coin, error) {
	type valued struct {
		c *coin.Coin
		v uint64
	}
	var total uint64
	vs := make([]valued, 0, len(held))
	for _, c := range held {
		v, err := c.Value()
		if err != nil {
			return nil, err
		}
		if total, err = coin.AddValue(total, v); err != nil {
			return nil, err
		}
		vs = append(vs, valued{c, v})
	}
	if total < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, amount)
	}
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].v > vs[j].v })

	// suffix[i] is the value of vs[i:], used to prune branches that cannot
	// reach the amount.
	suffix := make([]uint64, len(vs)+1)
	for i := len(vs) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + vs[i].v
	}

	var chosen []*coin.Coin
	var search func(i int, rest uint64) bool
	search = func(i int, rest uint64) bool {
		if rest == 0 {
			return true
		}
		if i == len(vs) || suffix[i] < rest {
			return false
		}
		if vs[i].v <= rest {
			chosen = append(chosen, vs[i].c)
			if search(i+1, rest-vs[i].v) {
				return true
			}
			chosen = chosen[:len(chosen)-1]
		}
		// Skip every coin of the same value; trying another equal coin in
		// the same position cannot succeed where this one failed.
		j := i + 1
		for j < len(vs) && vs[j].v == vs[i].v {
			j++
		}
		return search(j, rest)
	}
	if !search(0, amount) {
		return nil, fmt.Errorf("%w: %d", ErrNoExactAmount, amount)
	}
	return chosen, nil
}
