package wallet

import (
	"context"

	"github.com/locutus75/opencoin-historic/protocol"
)

// Approval decides whether a receiving wallet accepts an announced sum.
// A refusal carries a human readable reason that is sent back to the sender.
type Approval interface {
	Approve(ctx context.Context, msg *protocol.AnnounceSum) (ok bool, reason string)
}

// ApprovalFunc adapts a function to Approval.
type ApprovalFunc func(ctx context.Context, msg *protocol.AnnounceSum) (bool, string)

// Approve implements Approval.
func (f ApprovalFunc) Approve(ctx context.Context, msg *protocol.AnnounceSum) (bool, string) {
	return f(ctx, msg)
}

// ApproveAll accepts every announcement.
var ApproveAll Approval = ApprovalFunc(func(context.Context, *protocol.AnnounceSum) (bool, string) {
	return true, ""
})

// Refuse refuses every announcement with reason.
func Refuse(reason string) Approval {
	return ApprovalFunc(func(context.Context, *protocol.AnnounceSum) (bool, string) {
		return false, reason
	})
}
