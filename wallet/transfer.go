package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/protocol"
	"github.com/locutus75/opencoin-historic/storage"
)

// RequestTransfer sends a prepared request to the mint of a currency and
// returns its raw answer. The wallet state is not touched; Withdraw, Redeem
// and the spend listener build and settle requests themselves.
func (w *Wallet) RequestTransfer(ctx context.Context, currencyID string, req *protocol.TransferRequest) (*protocol.TransferResponse, error) {
	svc, err := w.issuer(currencyID)
	if err != nil {
		return nil, err
	}
	return svc.RequestTransfer(ctx, req)
}

// Withdraw asks the mint for one coin per denomination. Accepted coins are
// stored and returned. A delayed withdrawal returns protocol.ErrDelayed and
// stays pending under the returned transaction id until ResumeTransfer
// settles it.
func (w *Wallet) Withdraw(ctx context.Context, currencyID, target string, denominations ...string) (string, []*coin.Coin, error) {
	if len(denominations) == 0 {
		return "", nil, fmt.Errorf("%w: denominations", ErrNilParam)
	}
	return w.transfer(ctx, currencyID, target, denominations, nil, false)
}

// Redeem hands held coins back to the mint. The coins leave the wallet at
// once; they come back only when the mint rejects the request as malformed.
func (w *Wallet) Redeem(ctx context.Context, currencyID, target string, coins []*coin.Coin) (string, error) {
	if len(coins) == 0 {
		return "", fmt.Errorf("%w: coins", ErrNilParam)
	}
	tid, _, err := w.transfer(ctx, currencyID, target, nil, coins, false)
	return tid, err
}

// exchange trades coins received from a peer for fresh coins of the same
// denominations.
func (w *Wallet) exchange(ctx context.Context, currencyID, target string, coins []*coin.Coin) (string, []*coin.Coin, error) {
	denominations := make([]string, len(coins))
	for i, c := range coins {
		denominations[i] = c.Denomination
	}
	return w.transfer(ctx, currencyID, target, denominations, coins, true)
}

// transfer builds blanks for denominations, records the transfer as pending
// together with the clear coins, sends it to the mint and settles the answer.
func (w *Wallet) transfer(ctx context.Context, currencyID, target string, denominations []string, clearCoins []*coin.Coin, received bool) (string, []*coin.Coin, error) {
	svc, err := w.issuer(currencyID)
	if err != nil {
		return "", nil, err
	}
	tid, err := NewTransactionID()
	if err != nil {
		return "", nil, err
	}

	req := &protocol.TransferRequest{TransactionID: tid, Target: target}
	err = w.update(currencyID, func(s *storage.State) error {
		pending := &storage.PendingTransfer{
			TransactionID: tid,
			Target:        target,
			Exchange:      received,
			Created:       w.now(),
		}
		for _, d := range denominations {
			blank, mkc, err := w.makeBlank(s, d)
			if err != nil {
				return err
			}
			secret, blinded, err := mkc.PublicKey.BlindContainer(blank)
			if err != nil {
				return fmt.Errorf("wallet: blind %s blank: %w", d, err)
			}
			pending.Blanks = append(pending.Blanks, blank)
			pending.Secrets = append(pending.Secrets, secret)
			req.BlindedRequests = append(req.BlindedRequests, &protocol.BlindedRequest{KeyID: mkc.KeyID, Blinded: blinded})
		}

		if !received {
			held := make(map[string]bool, len(s.Coins))
			for _, c := range s.Coins {
				held[c.SerialHex()] = true
			}
			for _, c := range clearCoins {
				if !held[c.SerialHex()] {
					return fmt.Errorf("%w: %s", ErrCoinNotHeld, c.SerialHex())
				}
			}
			s.RemoveCoins(coin.Serials(clearCoins))
		}
		for _, c := range clearCoins {
			pending.Redeemed = append(pending.Redeemed, c.Clone())
		}
		req.ClearCoins = pending.Redeemed
		s.Pending[tid] = pending
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	log := w.log().WithFields(logrus.Fields{"currency": currencyID, "tid": tid})
	log.WithFields(logrus.Fields{
		"blanks": len(req.BlindedRequests),
		"clear":  len(req.ClearCoins),
	}).Debug("transfer requested")

	resp, err := svc.RequestTransfer(ctx, req)
	if err != nil {
		log.WithError(err).Warn("transfer request failed, left pending")
		return tid, nil, fmt.Errorf("%w: %w", protocol.ErrDelayed, err)
	}
	coins, err := w.settle(log, currencyID, tid, resp)
	return tid, coins, err
}

// ResumeTransfer polls the mint for a pending transfer and settles it. It
// returns the minted coins on accept, protocol.ErrDelayed while the mint is
// still waiting and a *protocol.RejectError on reject.
func (w *Wallet) ResumeTransfer(ctx context.Context, currencyID, tid string) ([]*coin.Coin, error) {
	s, err := w.State(currencyID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.Pending[tid]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPending, tid)
	}
	svc, err := w.issuer(currencyID)
	if err != nil {
		return nil, err
	}
	resp, err := svc.ResumeTransfer(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrDelayed, err)
	}
	log := w.log().WithFields(logrus.Fields{"currency": currencyID, "tid": tid})
	return w.settle(log, currencyID, tid, resp)
}

// PendingTransfers returns the ids of transfers waiting for the mint.
func (w *Wallet) PendingTransfers(currencyID string) ([]string, error) {
	s, err := w.State(currencyID)
	if err != nil {
		return nil, err
	}
	return s.PendingIDs(), nil
}

// settle applies a mint answer to the pending transfer tid.
//
// Accept unblinds and verifies every signature, stores the good coins and
// drops the pending entry. A coin whose signature does not verify is
// discarded and reported with ErrBadSignature. Delay leaves everything as it
// is. Reject drops the pending entry; owned clear coins go back into the
// wallet only for a plain protocol reject, since a ledger conflict or a
// crypto failure proves them worthless.
func (w *Wallet) settle(log *logrus.Entry, currencyID, tid string, resp *protocol.TransferResponse) ([]*coin.Coin, error) {
	outcome := resp.Err()
	if errors.Is(outcome, protocol.ErrDelayed) {
		log.Info("transfer delayed")
		return nil, outcome
	}
	var rej *protocol.RejectError
	if outcome != nil && !errors.As(outcome, &rej) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, outcome)
	}

	var minted []*coin.Coin
	var failed error
	err := w.update(currencyID, func(s *storage.State) error {
		pending, ok := s.Pending[tid]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPending, tid)
		}

		if rej != nil {
			delete(s.Pending, tid)
			if rej.Code == protocol.CodeProtocolReject && !pending.Exchange {
				s.AddCoins(pending.Redeemed...)
			}
			return nil
		}

		if len(resp.Signatures) != len(pending.Blanks) {
			return fmt.Errorf("%w: %d signatures for %d blanks", ErrInvalidResponse, len(resp.Signatures), len(pending.Blanks))
		}
		for i, blank := range pending.Blanks {
			c, err := unblind(s, blank, pending.Secrets[i], resp.Signatures[i])
			if err != nil {
				failed = errors.Join(failed, err)
				continue
			}
			minted = append(minted, c)
		}
		s.AddCoins(minted...)
		delete(s.Pending, tid)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rej != nil {
		log.WithFields(logrus.Fields{"reason": rej.Reason, "code": rej.Code}).Info("transfer rejected")
		return nil, rej
	}
	if failed != nil {
		log.WithError(failed).Error("minted coins discarded")
		return minted, failed
	}
	log.WithField("coins", len(minted)).Info("transfer accepted")
	return minted, nil
}

// unblind turns a blind signature into a coin and verifies it against the
// trusted certificate of its key.
func unblind(s *storage.State, blank *coin.Coin, secret, blindSig *big.Int) (*coin.Coin, error) {
	mkc, ok := s.MintKeys[blank.KeyID]
	if !ok {
		return nil, fmt.Errorf("%w: key %s", ErrNoMintKey, blank.KeyID)
	}
	sig, err := mkc.PublicKey.Unblind(secret, blindSig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	c := blank.Clone()
	c.SetSignature(sig)
	if err := c.Check(mkc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	return c, nil
}
