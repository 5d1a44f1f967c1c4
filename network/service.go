package network

import (
	"context"

	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/protocol"
)

// IssuerService is the issuer and mint side of a currency as a wallet sees
// it. Rejections and delays are carried in the responses; an error means the
// exchange itself failed.
type IssuerService interface {
	// AskLatestCDD returns the current currency description.
	AskLatestCDD(ctx context.Context) (*currency.CDD, error)

	// FetchMintKeys returns the current mint key certificates of the given
	// denominations, or of every denomination when none is given.
	FetchMintKeys(ctx context.Context, denominations []string) ([]*currency.MintKeyCertificate, error)

	// FetchMintKey returns the certificate of a key id, including keys that
	// have since been rotated out.
	FetchMintKey(ctx context.Context, keyID string) (*currency.MintKeyCertificate, error)

	// RequestTransfer submits blinded requests and clear coins to the mint.
	RequestTransfer(ctx context.Context, req *protocol.TransferRequest) (*protocol.TransferResponse, error)

	// ResumeTransfer polls a delayed transfer.
	ResumeTransfer(ctx context.Context, transactionID string) (*protocol.TransferResponse, error)
}

// WalletService is the receiving side of a wallet-to-wallet spend.
type WalletService interface {
	// AnnounceSum announces an amount about to be spent to the wallet.
	AnnounceSum(ctx context.Context, msg *protocol.AnnounceSum) (*protocol.AnnounceResponse, error)

	// RequestSpend hands over the coins of an announced transaction.
	RequestSpend(ctx context.Context, msg *protocol.RequestSpend) (*protocol.SpendResponse, error)
}

// JSON-RPC method names.
const (
	MethodAskLatestCDD    = "askLatestCDD"
	MethodFetchMintKeys   = "fetchMintKeys"
	MethodFetchMintKey    = "fetchMintKey"
	MethodRequestTransfer = "requestTransfer"
	MethodResumeTransfer  = "resumeTransfer"
	MethodAnnounceSum     = "announceSum"
	MethodRequestSpend    = "requestSpend"
)
