package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/protocol"
)

func TestMockIssuerService(t *testing.T) {
	var svc IssuerService = &MockIssuerService{
		AskLatestCDDFn: func(ctx context.Context) (*currency.CDD, error) {
			return &currency.CDD{CurrencyID: "oca"}, nil
		},
		ResumeTransferFn: func(ctx context.Context, tid string) (*protocol.TransferResponse, error) {
			return protocol.Rejected(protocol.CodeProtocolReject, protocol.ReasonUnknownTransaction), nil
		},
	}

	cdd, err := svc.AskLatestCDD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "oca", cdd.CurrencyID)

	resp, err := svc.ResumeTransfer(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, protocol.ReasonUnknownTransaction, resp.Reason)
}

func TestMockWalletService(t *testing.T) {
	var got *protocol.AnnounceSum
	var svc WalletService = &MockWalletService{
		AnnounceSumFn: func(ctx context.Context, msg *protocol.AnnounceSum) (*protocol.AnnounceResponse, error) {
			got = msg
			return &protocol.AnnounceResponse{Accepted: true}, nil
		},
	}

	resp, err := svc.AnnounceSum(context.Background(), &protocol.AnnounceSum{TransactionID: "t", Amount: 5})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, uint64(5), got.Amount)
}
