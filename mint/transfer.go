package mint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/authorizer"
	"github.com/locutus75/opencoin-historic/blindkey"
	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/container"
	"github.com/locutus75/opencoin-historic/ledger"
	"github.com/locutus75/opencoin-historic/protocol"
)

// plan is a validated transfer request.
type plan struct {
	req          *protocol.TransferRequest
	signers      []*blindkey.PrivateKey // one per blinded request
	serials      []string
	issueAmount  uint64
	redeemAmount uint64
}

func (p *plan) direction() ledger.Direction {
	switch {
	case len(p.req.ClearCoins) == 0:
		return ledger.DirectionIssue
	case len(p.req.BlindedRequests) == 0:
		return ledger.DirectionRedeem
	default:
		return ledger.DirectionExchange
	}
}

// RequestTransfer executes a transfer request. A transaction id that already
// reached a terminal state returns the stored outcome without any new side
// effect. A pending one is re-run from its stored request.
func (m *Mint) RequestTransfer(ctx context.Context, req *protocol.TransferRequest) *protocol.TransferResponse {
	if err := req.Validate(); err != nil {
		return protocol.Rejected(protocol.CodeProtocolReject, err.Error())
	}
	unlock := m.tids.lock(req.TransactionID)
	defer unlock()

	log := m.log().WithField("tid", req.TransactionID)
	existing, err := m.queue.GetTransfer(req.TransactionID)
	switch {
	case err == nil && existing.Status.Terminal():
		log.WithField("status", existing.Status).Debug("transfer already resolved")
		return responseOf(existing)
	case err == nil:
		stored, err := protocol.UnmarshalTransferRequest(existing.Request)
		if err != nil {
			log.WithError(err).Error("stored transfer request unreadable")
			return protocol.Delayed()
		}
		return m.execute(ctx, log, stored, true)
	case errors.Is(err, ledger.ErrNotFound):
		return m.execute(ctx, log, req, false)
	default:
		log.WithError(err).Error("transfer queue unavailable")
		return protocol.Delayed()
	}
}

// ResumeTransfer polls a delayed transfer. Repeated calls on a resolved
// transfer return the same outcome.
func (m *Mint) ResumeTransfer(ctx context.Context, tid string) *protocol.TransferResponse {
	unlock := m.tids.lock(tid)
	defer unlock()

	log := m.log().WithField("tid", tid)
	existing, err := m.queue.GetTransfer(tid)
	if errors.Is(err, ledger.ErrNotFound) {
		return protocol.Rejected(protocol.CodeProtocolReject, protocol.ReasonUnknownTransaction)
	}
	if err != nil {
		log.WithError(err).Error("transfer queue unavailable")
		return protocol.Delayed()
	}
	if existing.Status.Terminal() {
		return responseOf(existing)
	}
	stored, err := protocol.UnmarshalTransferRequest(existing.Request)
	if err != nil {
		log.WithError(err).Error("stored transfer request unreadable")
		return protocol.Delayed()
	}
	return m.execute(ctx, log, stored, true)
}

// execute runs validation, authorization, signing and recording. pending
// tells whether the transfer is already queued, in which case rejections
// are stored as its final outcome.
func (m *Mint) execute(ctx context.Context, log *logrus.Entry, req *protocol.TransferRequest, pending bool) *protocol.TransferResponse {
	p, rej := m.validate(req)
	if rej != nil {
		log.WithField("reason", rej.Reason).Info("transfer rejected")
		return m.finishReject(log, req, rej, pending)
	}

	if rej, delay := m.authorize(ctx, log, p); delay {
		return m.delay(log, req)
	} else if rej != nil {
		return m.finishReject(log, req, rej, pending)
	}

	signatures := make([]*big.Int, len(req.BlindedRequests))
	for i, b := range req.BlindedRequests {
		sig, err := p.signers[i].SignBlind(b.Blinded)
		if err != nil {
			rej := protocol.Reject(protocol.CodeProtocolReject, "blinded value %d: %v", i, err)
			return m.finishReject(log, req, rej, pending)
		}
		signatures[i] = sig
	}

	recorder := m.getRecorder()
	if recorder == nil {
		log.Warn("no issuer ledger attached")
		return m.delay(log, req)
	}
	want := &ledger.Record{
		TransactionID: req.TransactionID,
		Direction:     p.direction(),
		Serials:       p.serials,
		Target:        req.Target,
		Issued:        p.issueAmount,
	}
	rec, err := recorder.RecordTransaction(ctx, want)
	if err != nil {
		log.WithError(err).Info("issuer did not record transfer")
		return m.delay(log, req)
	}
	// An accepted record for other serials means the id was used before;
	// signing now would retire nothing.
	if rec.Status != ledger.StatusAccepted || !ledger.Same(rec, want) {
		log.WithField("ledger_reason", rec.Reason).Info("ledger refused transfer")
		rej := &protocol.RejectError{Reason: protocol.ReasonNotThrough, Code: protocol.CodeLedgerConflict}
		return m.finishReject(log, req, rej, true)
	}

	if err := m.queue.PutTransfer(&ledger.Transfer{
		TransactionID: req.TransactionID,
		Status:        ledger.StatusAccepted,
		Request:       mustMarshal(req),
		Signatures:    signatures,
		UpdatedAt:     m.now(),
	}); err != nil {
		// The ledger already holds the record, so a retry resolves to the same
		// terminal state and signatures.
		log.WithError(err).Error("store accepted transfer")
	}
	log.WithFields(logrus.Fields{
		"issued":   p.issueAmount,
		"redeemed": p.redeemAmount,
	}).Info("transfer accepted")
	return protocol.Accepted(signatures)
}

// validate checks keys, blinded values and clear coins. Double spending is
// left to the ledger, which checks atomically.
func (m *Mint) validate(req *protocol.TransferRequest) (*plan, *protocol.RejectError) {
	m.keyMu.RLock()
	defer m.keyMu.RUnlock()

	if m.cdd == nil {
		return nil, protocol.Reject(protocol.CodeProtocolReject, "mint has no currency")
	}
	now := m.now()
	p := &plan{req: req, signers: make([]*blindkey.PrivateKey, len(req.BlindedRequests))}

	for i, b := range req.BlindedRequests {
		mkc, ok := m.certs[b.KeyID]
		key := m.keys[b.KeyID]
		if !ok || key == nil {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "unknown key id %s", b.KeyID)
		}
		if !mkc.ValidAt(now) {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "mint key %s is not valid now", b.KeyID)
		}
		if b.Blinded.Sign() < 0 || b.Blinded.Cmp(key.Public().N) >= 0 {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "blinded value %d out of range", i)
		}
		v, err := mkc.Value()
		if err != nil {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "%v", err)
		}
		p.signers[i] = key
		if p.issueAmount, err = coin.AddValue(p.issueAmount, v); err != nil {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "issued amount: %v", err)
		}
	}

	seen := make(map[string]bool, len(req.ClearCoins))
	for _, c := range req.ClearCoins {
		if c.CurrencyID != m.cdd.CurrencyID {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "coin of currency %q", c.CurrencyID)
		}
		mkc, ok := m.certs[c.KeyID]
		if !ok {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "unknown key id %s", c.KeyID)
		}
		if err := c.Check(mkc); err != nil {
			code := protocol.CodeProtocolReject
			if errors.Is(err, coin.ErrBadSignature) || errors.Is(err, coin.ErrBlank) {
				code = protocol.CodeCryptoFailure
			}
			return nil, protocol.Reject(code, "coin %s: %v", c.SerialHex(), err)
		}
		serial := c.SerialHex()
		if seen[serial] {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "coin %s presented twice", serial)
		}
		seen[serial] = true
		v, err := c.Value()
		if err != nil {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "%v", err)
		}
		p.serials = append(p.serials, serial)
		if p.redeemAmount, err = coin.AddValue(p.redeemAmount, v); err != nil {
			return nil, protocol.Reject(protocol.CodeProtocolReject, "redeemed amount: %v", err)
		}
	}
	return p, nil
}

// authorize returns a rejection, or delay=true when the transfer must wait.
func (m *Mint) authorize(ctx context.Context, log *logrus.Entry, p *plan) (rej *protocol.RejectError, delay bool) {
	if m.authority == nil {
		return nil, false
	}
	req := &authorizer.Request{
		TransactionID: p.req.TransactionID,
		Target:        p.req.Target,
		IssueAmount:   p.issueAmount,
		RedeemAmount:  p.redeemAmount,
		RequestDigest: container.Digest(p.req),
	}
	approval, err := m.authority.Authorize(ctx, req)
	if err != nil {
		log.WithError(err).Info("authorizer unavailable")
		return nil, true
	}
	if !m.trusted(approval, req) {
		log.Warn("approval not signed by a registered authorizer")
		return protocol.Reject(protocol.CodeCryptoFailure, "authorization signature invalid"), false
	}
	switch approval.Decision {
	case authorizer.Approve:
		return nil, false
	case authorizer.Defer:
		log.Info("authorizer deferred transfer")
		return nil, true
	default:
		reason := approval.Reason
		if reason == "" {
			reason = "not authorized"
		}
		log.WithField("reason", reason).Info("authorizer denied transfer")
		return protocol.Reject(protocol.CodeProtocolReject, "%s", reason), false
	}
}

// trusted reports whether approval answers req and is signed by a
// registered authorizer key.
func (m *Mint) trusted(approval *authorizer.Approval, req *authorizer.Request) bool {
	if approval == nil || approval.TransactionID != req.TransactionID {
		return false
	}
	if !bytes.Equal(approval.RequestDigest, req.RequestDigest) {
		return false
	}
	m.keyMu.RLock()
	keys := m.authKeys
	m.keyMu.RUnlock()
	for _, k := range keys {
		if bytes.Equal(k.Compressed(), approval.PublicKey) {
			return approval.Verify(k)
		}
	}
	return false
}

func (m *Mint) delay(log *logrus.Entry, req *protocol.TransferRequest) *protocol.TransferResponse {
	err := m.queue.PutTransfer(&ledger.Transfer{
		TransactionID: req.TransactionID,
		Status:        ledger.StatusPending,
		Request:       mustMarshal(req),
		UpdatedAt:     m.now(),
	})
	if err != nil {
		log.WithError(err).Error("store pending transfer")
	}
	log.Info("transfer delayed")
	return protocol.Delayed()
}

// finishReject stores the rejection when the transfer was queued, so that
// resumes see the same outcome. A fresh request that is rejected leaves no
// trace and may be retried under the same id.
func (m *Mint) finishReject(log *logrus.Entry, req *protocol.TransferRequest, rej *protocol.RejectError, store bool) *protocol.TransferResponse {
	if store {
		err := m.queue.PutTransfer(&ledger.Transfer{
			TransactionID: req.TransactionID,
			Status:        ledger.StatusRejected,
			Request:       mustMarshal(req),
			Reason:        rej.Reason,
			Code:          string(rej.Code),
			UpdatedAt:     m.now(),
		})
		if err != nil {
			log.WithError(err).Error("store rejected transfer")
		}
	}
	return protocol.Rejected(rej.Code, rej.Reason)
}

func responseOf(t *ledger.Transfer) *protocol.TransferResponse {
	switch t.Status {
	case ledger.StatusAccepted:
		return protocol.Accepted(t.Signatures)
	case ledger.StatusRejected:
		return protocol.Rejected(protocol.Code(t.Code), t.Reason)
	default:
		return protocol.Delayed()
	}
}

// mustMarshal encodes a validated request. JSON encoding of these types
// cannot fail.
func mustMarshal(req *protocol.TransferRequest) []byte {
	data, err := req.Marshal()
	if err != nil {
		panic(fmt.Sprintf("mint: marshal transfer request: %v", err))
	}
	return data
}
