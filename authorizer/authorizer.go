package authorizer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/container"
)

// Approval is a signed verdict on one transfer request.
type Approval struct {
	TransactionID string
	RequestDigest []byte
	Decision      Decision
	Reason        string
	PublicKey     []byte // compressed key of the signer
	Signature     []byte // DER signature over Digest
}

// EncodeFields implements container.Container.
func (a *Approval) EncodeFields(e *container.Encoder) {
	e.String("transactionId", container.Signing, a.TransactionID)
	e.Raw("requestDigest", container.Signing, a.RequestDigest)
	e.Uint("decision", container.Signing, uint64(a.Decision))
	e.String("reason", container.Signing, a.Reason)
	e.Raw("publicKey", container.Signing, a.PublicKey)
	e.Raw("signature", 0, a.Signature)
}

// Digest returns the hash the authorizer signs.
func (a *Approval) Digest() []byte { return container.Digest(a) }

// Verify reports whether the approval is signed by pub.
func (a *Approval) Verify(pub *ec.PublicKey) bool {
	if a == nil || pub == nil || len(a.Signature) == 0 {
		return false
	}
	if !bytes.Equal(a.PublicKey, pub.Compressed()) {
		return false
	}
	sig, err := ec.ParseDERSignature(a.Signature)
	if err != nil {
		return false
	}
	return sig.Verify(a.Digest(), pub)
}

// Authority authorizes transfer requests for the mint.
type Authority interface {
	Authorize(ctx context.Context, req *Request) (*Approval, error)
}

// Authorizer signs the verdicts of a policy with its own key.
type Authorizer struct {
	mu     sync.RWMutex
	key    *ec.PrivateKey
	policy Policy
	logger *logrus.Logger
}

var _ Authority = (*Authorizer)(nil)

// New creates an authorizer with a fresh signing key. A nil logger discards
// output.
func New(policy Policy, logger *logrus.Logger) (*Authorizer, error) {
	key, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("authorizer: generate key: %w", err)
	}
	return NewWithKey(key, policy, logger)
}

// NewWithKey creates an authorizer around an existing key.
func NewWithKey(key *ec.PrivateKey, policy Policy, logger *logrus.Logger) (*Authorizer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: key", ErrNilParam)
	}
	if policy == nil {
		policy = ApproveAll
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Authorizer{key: key, policy: policy, logger: logger}, nil
}

// PublicKey returns the key the mint must register to accept approvals.
func (a *Authorizer) PublicKey() *ec.PublicKey { return a.key.PubKey() }

// SetPolicy swaps the policy for subsequent requests.
func (a *Authorizer) SetPolicy(p Policy) {
	if p == nil {
		p = ApproveAll
	}
	a.mu.Lock()
	a.policy = p
	a.mu.Unlock()
}

// Authorize implements Authority.
func (a *Authorizer) Authorize(ctx context.Context, req *Request) (*Approval, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request", ErrNilParam)
	}
	a.mu.RLock()
	policy := a.policy
	a.mu.RUnlock()

	verdict := policy.Decide(ctx, req)
	approval := &Approval{
		TransactionID: req.TransactionID,
		RequestDigest: append([]byte(nil), req.RequestDigest...),
		Decision:      verdict.Decision,
		Reason:        verdict.Reason,
		PublicKey:     a.key.PubKey().Compressed(),
	}
	sig, err := a.key.Sign(approval.Digest())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignFailed, err)
	}
	approval.Signature = sig.Serialize()

	a.logger.WithFields(logrus.Fields{
		"component": "authorizer",
		"tid":       req.TransactionID,
		"decision":  verdict.Decision,
	}).Debug("request decided")
	return approval, nil
}
