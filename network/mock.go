package network

import (
	"context"

	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/protocol"
)

// MockIssuerService is a test double for IssuerService.
// All function fields must be set before the corresponding method is called.
type MockIssuerService struct {
	AskLatestCDDFn    func(ctx context.Context) (*currency.CDD, error)
	FetchMintKeysFn   func(ctx context.Context, denominations []string) ([]*currency.MintKeyCertificate, error)
	FetchMintKeyFn    func(ctx context.Context, keyID string) (*currency.MintKeyCertificate, error)
	RequestTransferFn func(ctx context.Context, req *protocol.TransferRequest) (*protocol.TransferResponse, error)
	ResumeTransferFn  func(ctx context.Context, transactionID string) (*protocol.TransferResponse, error)
}

var _ IssuerService = (*MockIssuerService)(nil)

func (m *MockIssuerService) AskLatestCDD(ctx context.Context) (*currency.CDD, error) {
	return m.AskLatestCDDFn(ctx)
}
func (m *MockIssuerService) FetchMintKeys(ctx context.Context, denominations []string) ([]*currency.MintKeyCertificate, error) {
	return m.FetchMintKeysFn(ctx, denominations)
}
func (m *MockIssuerService) FetchMintKey(ctx context.Context, keyID string) (*currency.MintKeyCertificate, error) {
	return m.FetchMintKeyFn(ctx, keyID)
}
func (m *MockIssuerService) RequestTransfer(ctx context.Context, req *protocol.TransferRequest) (*protocol.TransferResponse, error) {
	return m.RequestTransferFn(ctx, req)
}
func (m *MockIssuerService) ResumeTransfer(ctx context.Context, transactionID string) (*protocol.TransferResponse, error) {
	return m.ResumeTransferFn(ctx, transactionID)
}

// MockWalletService is a test double for WalletService.
type MockWalletService struct {
	AnnounceSumFn  func(ctx context.Context, msg *protocol.AnnounceSum) (*protocol.AnnounceResponse, error)
	RequestSpendFn func(ctx context.Context, msg *protocol.RequestSpend) (*protocol.SpendResponse, error)
}

var _ WalletService = (*MockWalletService)(nil)

func (m *MockWalletService) AnnounceSum(ctx context.Context, msg *protocol.AnnounceSum) (*protocol.AnnounceResponse, error) {
	return m.AnnounceSumFn(ctx, msg)
}
func (m *MockWalletService) RequestSpend(ctx context.Context, msg *protocol.RequestSpend) (*protocol.SpendResponse, error) {
	return m.RequestSpendFn(ctx, msg)
}
