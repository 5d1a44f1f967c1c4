package wallet

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/network"
	"github.com/locutus75/opencoin-historic/protocol"
)

// Listener is the receiving side of a wallet. It implements
// network.WalletService.
type Listener struct {
	w *Wallet
}

var _ network.WalletService = (*Listener)(nil)

// Listener returns the receiving side of w.
func (w *Wallet) Listener() *Listener { return &Listener{w: w} }

// AnnounceSum implements network.WalletService.
func (l *Listener) AnnounceSum(ctx context.Context, msg *protocol.AnnounceSum) (*protocol.AnnounceResponse, error) {
	return l.w.ListenSum(ctx, msg), nil
}

// RequestSpend implements network.WalletService.
func (l *Listener) RequestSpend(ctx context.Context, msg *protocol.RequestSpend) (*protocol.SpendResponse, error) {
	return l.w.ListenSpend(ctx, msg), nil
}

// ListenSum answers an announced sum with the wallet's approval policy. An
// accepted announcement is remembered until a spend consumes it; nothing
// else is committed.
func (w *Wallet) ListenSum(ctx context.Context, msg *protocol.AnnounceSum) *protocol.AnnounceResponse {
	if msg == nil || msg.TransactionID == "" {
		return &protocol.AnnounceResponse{Reason: "missing transactionId"}
	}
	ok, reason := w.getApproval().Approve(ctx, msg)
	log := w.log().WithFields(logrus.Fields{"tid": msg.TransactionID, "amount": msg.Amount})
	if !ok {
		log.WithField("reason", reason).Info("announced sum refused")
		return &protocol.AnnounceResponse{Reason: reason}
	}

	w.mu.Lock()
	w.announcements[msg.TransactionID] = &announcement{amount: msg.Amount, target: msg.Target}
	w.mu.Unlock()
	log.Debug("announced sum accepted")
	return &protocol.AnnounceResponse{Accepted: true}
}

// claim removes and returns the announcement of tid, so that concurrent
// spends of the same id cannot both proceed.
func (w *Wallet) claim(tid string) (*announcement, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.announcements[tid]
	if ok {
		delete(w.announcements, tid)
	}
	return a, ok
}

// release puts back an announcement whose spend was rejected, so the sender
// may try again with other coins.
func (w *Wallet) release(tid string, a *announcement) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, taken := w.announcements[tid]; !taken {
		w.announcements[tid] = a
	}
}

// ListenSpend receives the coins of an announced transaction. The coins must
// add up to the announced amount and verify under trusted mint keys. They
// are then exchanged at the mint; only fresh coins are credited, so a
// double spend surfaces as "did not go through" and credits nothing.
// Accepted and delayed spends consume the transaction id.
func (w *Wallet) ListenSpend(ctx context.Context, msg *protocol.RequestSpend) *protocol.SpendResponse {
	if msg == nil {
		return protocol.SpendRejected(protocol.CodeProtocolReject, protocol.ReasonUnknownTransaction)
	}
	log := w.log().WithField("tid", msg.TransactionID)

	a, ok := w.claim(msg.TransactionID)
	if !ok {
		log.Info("spend without announcement")
		return protocol.SpendRejected(protocol.CodeProtocolReject, protocol.ReasonUnknownTransaction)
	}

	resp := w.receive(ctx, log, a, msg)
	if resp.Header == protocol.SpendReject {
		w.release(msg.TransactionID, a)
		log.WithFields(logrus.Fields{"reason": resp.Reason, "code": resp.Code}).Info("spend rejected")
	}
	return resp
}

func (w *Wallet) receive(ctx context.Context, log *logrus.Entry, a *announcement, msg *protocol.RequestSpend) *protocol.SpendResponse {
	got, err := coin.Sum(msg.Coins)
	if err != nil {
		return protocol.SpendRejected(protocol.CodeProtocolReject, err.Error())
	}
	if got != a.amount {
		return protocol.SpendRejected(protocol.CodeProtocolReject, protocol.AmountMismatch(a.amount, got))
	}
	if len(msg.Coins) == 0 {
		return protocol.SpendAccepted()
	}

	currencyID := msg.Coins[0].CurrencyID
	for _, c := range msg.Coins {
		if c.CurrencyID != currencyID {
			return protocol.SpendRejected(protocol.CodeProtocolReject, "coins of more than one currency")
		}
	}
	if rej := w.verifyCoins(ctx, currencyID, msg.Coins); rej != nil {
		return protocol.SpendRejected(rej.Code, rej.Reason)
	}

	_, minted, err := w.exchange(ctx, currencyID, a.target, msg.Coins)
	var rej *protocol.RejectError
	switch {
	case err == nil:
		log.WithField("coins", len(minted)).Info("spend accepted")
		return protocol.SpendAccepted()
	case errors.Is(err, protocol.ErrDelayed):
		return protocol.SpendDelayed()
	case errors.Is(err, protocol.ErrLedgerConflict):
		return protocol.SpendRejected(protocol.CodeLedgerConflict, protocol.ReasonNotThrough)
	case errors.As(err, &rej):
		return protocol.SpendRejected(rej.Code, rej.Reason)
	case errors.Is(err, ErrBadSignature):
		// The mint accepted and the ledger holds the serials, so the sender
		// has been paid even though some fresh coins were lost here.
		log.WithError(err).Error("exchange minted coins that do not verify")
		return protocol.SpendAccepted()
	default:
		return protocol.SpendRejected(protocol.CodeProtocolReject, err.Error())
	}
}

// verifyCoins checks every coin against the trusted certificate of its key.
// Unknown keys are fetched from the issuer once and must verify against the
// stored currency description.
func (w *Wallet) verifyCoins(ctx context.Context, currencyID string, coins []*coin.Coin) *protocol.RejectError {
	s, err := w.State(currencyID)
	if err != nil {
		return protocol.Reject(protocol.CodeProtocolReject, "%v", err)
	}
	if s.CDD == nil {
		return protocol.Reject(protocol.CodeProtocolReject, "unknown currency %q", currencyID)
	}

	// Coins may carry keys rotated out before this wallet joined, so unknown
	// keys are fetched by id rather than as the current set.
	fetched := make(map[string]*currency.MintKeyCertificate)
	for _, c := range coins {
		if _, ok := s.MintKeys[c.KeyID]; ok || fetched[c.KeyID] != nil {
			continue
		}
		mkc, err := w.FetchMintKey(ctx, currencyID, c.KeyID)
		if err != nil {
			w.log().WithError(err).WithField("key_id", c.KeyID).Info("mint key lookup failed")
			return protocol.Reject(protocol.CodeProtocolReject, "unknown key id %s", c.KeyID)
		}
		fetched[c.KeyID] = mkc
	}

	for _, c := range coins {
		mkc, ok := s.MintKeys[c.KeyID]
		if !ok {
			mkc = fetched[c.KeyID]
		}
		if err := c.Check(mkc); err != nil {
			code := protocol.CodeProtocolReject
			if errors.Is(err, coin.ErrBadSignature) || errors.Is(err, coin.ErrBlank) {
				code = protocol.CodeCryptoFailure
			}
			return protocol.Reject(code, "coin %s: %v", c.SerialHex(), err)
		}
	}
	return nil
}
