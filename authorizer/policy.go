// Package authorizer decides whether the mint may execute a transfer. A
// Policy makes the decision; an Authorizer wraps a policy and signs every
// decision with its own key so the mint can check where it came from.
package authorizer

import (
	"context"
	"fmt"

	"github.com/locutus75/opencoin-historic/container"
)

// Decision is the outcome of a policy.
type Decision uint8

const (
	Approve Decision = iota
	Deny
	Defer
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Deny:
		return "deny"
	case Defer:
		return "defer"
	default:
		return fmt.Sprintf("decision(%d)", uint8(d))
	}
}

// Verdict is a decision with an optional human readable reason.
type Verdict struct {
	Decision Decision
	Reason   string
}

// Request is what the policy sees of a transfer.
type Request struct {
	TransactionID string
	Target        string
	IssueAmount   uint64 // total value requested as blinded coins
	RedeemAmount  uint64 // total value of the clear coins handed in
	RequestDigest []byte // digest of the full transfer request
}

// EncodeFields implements container.Container.
func (r *Request) EncodeFields(e *container.Encoder) {
	e.String("transactionId", container.Signing, r.TransactionID)
	e.String("target", container.Signing, r.Target)
	e.Uint("issueAmount", container.Signing, r.IssueAmount)
	e.Uint("redeemAmount", container.Signing, r.RedeemAmount)
	e.Raw("requestDigest", container.Signing, r.RequestDigest)
}

// Policy decides on transfer requests.
type Policy interface {
	Decide(ctx context.Context, req *Request) Verdict
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, req *Request) Verdict

// Decide implements Policy.
func (f PolicyFunc) Decide(ctx context.Context, req *Request) Verdict { return f(ctx, req) }

// ApproveAll approves every request.
var ApproveAll Policy = PolicyFunc(func(context.Context, *Request) Verdict {
	return Verdict{Decision: Approve}
})

// DeferAll postpones every request.
var DeferAll Policy = PolicyFunc(func(context.Context, *Request) Verdict {
	return Verdict{Decision: Defer}
})

// DenyAll denies every request with reason.
func DenyAll(reason string) Policy {
	return PolicyFunc(func(context.Context, *Request) Verdict {
		return Verdict{Decision: Deny, Reason: reason}
	})
}

// ExchangeOnly approves requests that do not mint more value than they
// retire. Redeems and exchanges pass; plain issuance is denied.
var ExchangeOnly Policy = PolicyFunc(func(_ context.Context, req *Request) Verdict {
	if req.IssueAmount > req.RedeemAmount {
		return Verdict{
			Decision: Deny,
			Reason:   fmt.Sprintf("issuing %d requires payment, %d handed in", req.IssueAmount, req.RedeemAmount),
		}
	}
	return Verdict{Decision: Approve}
})
