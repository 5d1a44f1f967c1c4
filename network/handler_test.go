package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/protocol"
)

func newTestServer(t *testing.T, issuer IssuerService, wallet WalletService, opts HandlerOptions) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewHandler(issuer, wallet, opts))
	t.Cleanup(server.Close)
	return server
}

func TestHandler_IssuerRoundTrip(t *testing.T) {
	var gotReq *protocol.TransferRequest
	var gotDenoms []string
	issuer := &MockIssuerService{
		AskLatestCDDFn: func(ctx context.Context) (*currency.CDD, error) {
			return &currency.CDD{CurrencyID: "oca", Denominations: []string{"1", "5"}, Sig: big.NewInt(42)}, nil
		},
		FetchMintKeysFn: func(ctx context.Context, denominations []string) ([]*currency.MintKeyCertificate, error) {
			gotDenoms = denominations
			return []*currency.MintKeyCertificate{{KeyID: "k5", Denomination: "5"}}, nil
		},
		FetchMintKeyFn: func(ctx context.Context, keyID string) (*currency.MintKeyCertificate, error) {
			if keyID != "k1" {
				return nil, errors.New("unknown mint key")
			}
			return &currency.MintKeyCertificate{KeyID: "k1", Denomination: "1"}, nil
		},
		RequestTransferFn: func(ctx context.Context, req *protocol.TransferRequest) (*protocol.TransferResponse, error) {
			gotReq = req
			return protocol.Accepted([]*big.Int{big.NewInt(7)}), nil
		},
		ResumeTransferFn: func(ctx context.Context, tid string) (*protocol.TransferResponse, error) {
			return protocol.Rejected(protocol.CodeLedgerConflict, protocol.ReasonNotThrough), nil
		},
	}
	server := newTestServer(t, issuer, nil, HandlerOptions{})
	client := NewClient(ClientConfig{URL: server.URL})
	ctx := context.Background()

	cdd, err := client.AskLatestCDD(ctx)
	require.NoError(t, err)
	assert.Equal(t, "oca", cdd.CurrencyID)
	assert.Equal(t, 0, cdd.Sig.Cmp(big.NewInt(42)))

	mkcs, err := client.FetchMintKeys(ctx, []string{"5"})
	require.NoError(t, err)
	require.Len(t, mkcs, 1)
	assert.Equal(t, "k5", mkcs[0].KeyID)
	assert.Equal(t, []string{"5"}, gotDenoms)

	mkc, err := client.FetchMintKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "1", mkc.Denomination)
	_, err = client.FetchMintKey(ctx, "nope")
	assert.Error(t, err, "service errors reach the caller")

	huge, _ := new(big.Int).SetString("123456789012345678901234567890123456789", 10)
	resp, err := client.RequestTransfer(ctx, &protocol.TransferRequest{
		TransactionID:   "tid",
		Target:          "foo",
		BlindedRequests: []*protocol.BlindedRequest{{KeyID: "k5", Blinded: huge}},
		ClearCoins:      []*coin.Coin{{CurrencyID: "oca", Serial: []byte{1, 2}, Sig: big.NewInt(3)}},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.TransferAccept, resp.Header)
	assert.Equal(t, 0, resp.Signatures[0].Cmp(big.NewInt(7)))
	require.NotNil(t, gotReq)
	assert.Equal(t, 0, gotReq.BlindedRequests[0].Blinded.Cmp(huge), "big integers survive the wire")
	assert.Equal(t, []byte{1, 2}, gotReq.ClearCoins[0].Serial)

	resp, err = client.ResumeTransfer(ctx, "tid")
	require.NoError(t, err)
	err = resp.Err()
	assert.ErrorIs(t, err, protocol.ErrLedgerConflict)
	assert.Equal(t, protocol.ReasonNotThrough, err.Error())
}

func TestHandler_WalletRoundTrip(t *testing.T) {
	wallet := &MockWalletService{
		AnnounceSumFn: func(ctx context.Context, msg *protocol.AnnounceSum) (*protocol.AnnounceResponse, error) {
			if msg.Amount%2 == 1 {
				return &protocol.AnnounceResponse{Reason: "I don't like odd sums"}, nil
			}
			return &protocol.AnnounceResponse{Accepted: true}, nil
		},
		RequestSpendFn: func(ctx context.Context, msg *protocol.RequestSpend) (*protocol.SpendResponse, error) {
			return protocol.SpendRejected(protocol.CodeProtocolReject, protocol.AmountMismatch(5, uint64(len(msg.Coins)))), nil
		},
	}
	server := newTestServer(t, nil, wallet, HandlerOptions{})
	client := NewClient(ClientConfig{URL: server.URL})
	ctx := context.Background()

	resp, err := client.AnnounceSum(ctx, &protocol.AnnounceSum{TransactionID: "t", Amount: 3})
	require.NoError(t, err)
	err = resp.Err()
	assert.ErrorIs(t, err, protocol.ErrRefused)
	assert.Equal(t, "I don't like odd sums", err.Error())

	resp, err = client.AnnounceSum(ctx, &protocol.AnnounceSum{TransactionID: "t", Amount: 4})
	require.NoError(t, err)
	assert.NoError(t, resp.Err())

	spend, err := client.RequestSpend(ctx, &protocol.RequestSpend{TransactionID: "t"})
	require.NoError(t, err)
	assert.Equal(t, "amount of coins does not match announced one. Announced: 5, got 0", spend.Reason)

	_, err = client.AskLatestCDD(ctx)
	assert.ErrorIs(t, err, ErrRemote, "issuer methods are not served by a wallet endpoint")
}

func TestHandler_ServiceError(t *testing.T) {
	issuer := &MockIssuerService{
		AskLatestCDDFn: func(ctx context.Context) (*currency.CDD, error) {
			return nil, errors.New("issuer: no currency description")
		},
	}
	server := newTestServer(t, issuer, nil, HandlerOptions{})
	_, err := NewClient(ClientConfig{URL: server.URL}).AskLatestCDD(context.Background())
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "no currency description")
}

func TestHandler_BadRequests(t *testing.T) {
	server := newTestServer(t, &MockIssuerService{}, nil, HandlerOptions{})

	post := func(body string) rpcResponse {
		resp, err := http.Post(server.URL, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out rpcResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	out := post(`{not json`)
	require.NotNil(t, out.Error)
	assert.Equal(t, codeParseError, out.Error.Code)

	out = post(`{"id":1,"method":"mintMoney","params":[]}`)
	require.NotNil(t, out.Error)
	assert.Equal(t, codeMethodNotFound, out.Error.Code)

	out = post(`{"id":2,"method":"requestTransfer","params":[]}`)
	require.NotNil(t, out.Error)
	assert.Equal(t, codeInvalidParams, out.Error.Code)
	assert.Equal(t, int64(2), out.ID)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_BasicAuth(t *testing.T) {
	issuer := &MockIssuerService{
		AskLatestCDDFn: func(ctx context.Context) (*currency.CDD, error) {
			return &currency.CDD{CurrencyID: "oca"}, nil
		},
	}
	server := newTestServer(t, issuer, nil, HandlerOptions{User: "mint", Password: "s3cret"})
	ctx := context.Background()

	_, err := NewClient(ClientConfig{URL: server.URL}).AskLatestCDD(ctx)
	assert.ErrorIs(t, err, ErrAuthFailed)

	_, err = NewClient(ClientConfig{URL: server.URL, User: "mint", Password: "wrong"}).AskLatestCDD(ctx)
	assert.ErrorIs(t, err, ErrAuthFailed)

	cdd, err := NewClient(ClientConfig{URL: server.URL, User: "mint", Password: "s3cret"}).AskLatestCDD(ctx)
	require.NoError(t, err)
	assert.Equal(t, "oca", cdd.CurrencyID)
}

func TestHandler_TraceMessages(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	wallet := &MockWalletService{
		AnnounceSumFn: func(ctx context.Context, msg *protocol.AnnounceSum) (*protocol.AnnounceResponse, error) {
			return &protocol.AnnounceResponse{Accepted: true}, nil
		},
	}
	server := newTestServer(t, nil, wallet, HandlerOptions{Logger: logger, TraceMessages: true})
	client := NewClient(ClientConfig{URL: server.URL, Logger: logger, TraceMessages: true})

	_, err := client.AnnounceSum(context.Background(), &protocol.AnnounceSum{TransactionID: "traced", Amount: 2})
	require.NoError(t, err)

	var directions []string
	for _, e := range hook.AllEntries() {
		if e.Data["method"] == MethodAnnounceSum && e.Level == logrus.DebugLevel {
			directions = append(directions, e.Data["direction"].(string))
		}
	}
	assert.ElementsMatch(t, []string{"send", "recv", "recv", "send"}, directions)
}
