// Package protocol defines the messages exchanged between wallets, the mint
// and the issuer, and the outcome taxonomy of those exchanges.
//
// Outcomes are values: a rejection or a delay is a normal response, not a
// transport error. Err converts a response into a typed error for callers
// that prefer error returns.
package protocol

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/container"
)

// Literal rejection reasons. Peers compare these strings, so they must not change.
const (
	ReasonUnknownTransaction = "unknown transactionId"
	ReasonNotThrough         = "did not go through"
)

// AmountMismatch is the rejection reason of a spend whose coins do not add
// up to the announced sum.
func AmountMismatch(announced, got uint64) string {
	return fmt.Sprintf("amount of coins does not match announced one. Announced: %d, got %d", announced, got)
}

// Code classifies a rejection for machines. The reason stays the human
// readable part.
type Code string

const (
	CodeProtocolReject Code = "protocol_reject"
	CodeLedgerConflict Code = "ledger_conflict"
	CodeCryptoFailure  Code = "crypto_failure"
)

// Header names a response kind.
type Header string

const (
	TransferAccept Header = "TransferAccept"
	TransferReject Header = "TransferReject"
	TransferDelay  Header = "TransferDelay"
	SpendAccept    Header = "SpendAccept"
	SpendReject    Header = "SpendReject"
	SpendDelay     Header = "SpendDelay"
)

// ---------------------------------------------------------------------------
// Mint transfer
// ---------------------------------------------------------------------------

// BlindedRequest asks for a blind signature of Blinded with key KeyID.
type BlindedRequest struct {
	KeyID   string   `json:"keyId"`
	Blinded *big.Int `json:"blinded"`
}

// EncodeFields implements container.Container.
func (b *BlindedRequest) EncodeFields(e *container.Encoder) {
	e.String("keyId", container.Signing, b.KeyID)
	e.Int("blinded", container.Signing, b.Blinded)
}

// TransferRequest asks the mint to sign blinded values and/or retire clear coins.
type TransferRequest struct {
	TransactionID   string            `json:"transactionId"`
	Target          string            `json:"target"`
	BlindedRequests []*BlindedRequest `json:"blindedRequests"`
	ClearCoins      []*coin.Coin      `json:"clearCoins"`
}

// EncodeFields implements container.Container.
func (r *TransferRequest) EncodeFields(e *container.Encoder) {
	e.String("transactionId", container.Signing, r.TransactionID)
	e.String("target", container.Signing, r.Target)
	e.List("blindedRequests", container.Signing, container.Items(r.BlindedRequests))
	e.List("clearCoins", container.Signing, container.Items(r.ClearCoins))
}

// Validate checks the request shape. Cryptographic checks belong to the mint.
func (r *TransferRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil transfer request", ErrInvalidMessage)
	}
	if r.TransactionID == "" {
		return fmt.Errorf("%w: empty transaction id", ErrInvalidMessage)
	}
	if len(r.BlindedRequests) == 0 && len(r.ClearCoins) == 0 {
		return fmt.Errorf("%w: nothing to transfer", ErrInvalidMessage)
	}
	for i, b := range r.BlindedRequests {
		if b == nil || b.KeyID == "" || b.Blinded == nil {
			return fmt.Errorf("%w: blinded request %d incomplete", ErrInvalidMessage, i)
		}
	}
	for i, c := range r.ClearCoins {
		if c == nil {
			return fmt.Errorf("%w: clear coin %d missing", ErrInvalidMessage, i)
		}
	}
	return nil
}

// Marshal encodes the request for durable storage.
func (r *TransferRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalTransferRequest decodes a request produced by Marshal.
func UnmarshalTransferRequest(data []byte) (*TransferRequest, error) {
	var r TransferRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return &r, nil
}

// TransferResponse is the outcome of a transfer request or a resume.
type TransferResponse struct {
	Header     Header     `json:"header"`
	Signatures []*big.Int `json:"signatures,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Code       Code       `json:"code,omitempty"`
}

// Accepted builds a TransferAccept response.
func Accepted(signatures []*big.Int) *TransferResponse {
	return &TransferResponse{Header: TransferAccept, Signatures: signatures}
}

// Rejected builds a TransferReject response.
func Rejected(code Code, reason string) *TransferResponse {
	return &TransferResponse{Header: TransferReject, Reason: reason, Code: code}
}

// Delayed builds a TransferDelay response.
func Delayed() *TransferResponse {
	return &TransferResponse{Header: TransferDelay}
}

// Err returns nil for an accept, ErrDelayed for a delay and a *RejectError
// for a reject.
func (r *TransferResponse) Err() error {
	if r == nil {
		return fmt.Errorf("%w: nil transfer response", ErrInvalidMessage)
	}
	switch r.Header {
	case TransferAccept:
		return nil
	case TransferDelay:
		return ErrDelayed
	case TransferReject:
		return &RejectError{Reason: r.Reason, Code: r.Code}
	default:
		return fmt.Errorf("%w: unknown header %q", ErrInvalidMessage, r.Header)
	}
}

// ResumeTransfer polls a delayed transfer.
type ResumeTransfer struct {
	TransactionID string `json:"transactionId"`
}

// ---------------------------------------------------------------------------
// Wallet to wallet
// ---------------------------------------------------------------------------

// AnnounceSum tells a receiver how much is about to be spent to it.
type AnnounceSum struct {
	TransactionID string `json:"transactionId"`
	Amount        uint64 `json:"amount"`
	Target        string `json:"target"`
}

// AnnounceResponse is true or a refusal message.
type AnnounceResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Err returns nil when accepted and a *RefusedError otherwise.
func (r *AnnounceResponse) Err() error {
	if r == nil {
		return fmt.Errorf("%w: nil announce response", ErrInvalidMessage)
	}
	if r.Accepted {
		return nil
	}
	return &RefusedError{Reason: r.Reason}
}

// RequestSpend hands coins over for an announced transaction.
type RequestSpend struct {
	TransactionID string       `json:"transactionId"`
	Coins         []*coin.Coin `json:"coins"`
}

// SpendResponse is the outcome of a spend.
type SpendResponse struct {
	Header Header `json:"header"`
	Reason string `json:"reason,omitempty"`
	Code   Code   `json:"code,omitempty"`
}

// SpendAccepted builds a SpendAccept response.
func SpendAccepted() *SpendResponse { return &SpendResponse{Header: SpendAccept} }

// SpendRejected builds a SpendReject response.
func SpendRejected(code Code, reason string) *SpendResponse {
	return &SpendResponse{Header: SpendReject, Reason: reason, Code: code}
}

// SpendDelayed builds a SpendDelay response.
func SpendDelayed() *SpendResponse { return &SpendResponse{Header: SpendDelay} }

// Err returns nil for an accept, ErrDelayed for a delay and a *RejectError
// for a reject.
func (r *SpendResponse) Err() error {
	if r == nil {
		return fmt.Errorf("%w: nil spend response", ErrInvalidMessage)
	}
	switch r.Header {
	case SpendAccept:
		return nil
	case SpendDelay:
		return ErrDelayed
	case SpendReject:
		return &RejectError{Reason: r.Reason, Code: r.Code}
	default:
		return fmt.Errorf("%w: unknown header %q", ErrInvalidMessage, r.Header)
	}
}

// ---------------------------------------------------------------------------
// Issuer queries
// ---------------------------------------------------------------------------

// AskLatestCDD requests the current currency description.
type AskLatestCDD struct{}

// FetchMintKeys requests the current mint key certificates of denominations.
// An empty list asks for every denomination.
type FetchMintKeys struct {
	Denominations []string `json:"denominations"`
}

// FetchMintKey requests the certificate of one mint key, current or retired.
type FetchMintKey struct {
	KeyID string `json:"keyId"`
}
