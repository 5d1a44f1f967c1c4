package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/protocol"
)

// Client is a JSON-RPC 1.0 client for issuer, mint and wallet endpoints.
// It handles request serialization, authentication, and response parsing.
// The service methods are built on top of Call.
type Client struct {
	url    string
	user   string
	pass   string
	client *http.Client
	nextID atomic.Int64
	logger *logrus.Logger
	trace  bool
}

var (
	_ IssuerService = (*Client)(nil)
	_ WalletService = (*Client)(nil)
)

// rpcRequest represents a JSON-RPC 1.0 request payload.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse represents a JSON-RPC 1.0 response payload.
type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcError represents an error returned by the JSON-RPC server.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a JSON-RPC client with the given configuration.
// The client uses HTTP Basic Auth when User is non-empty, and maintains
// a connection pool for efficient reuse.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:  cfg.URL,
		user: cfg.User,
		pass: cfg.Password,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		logger: loggerOrDiscard(cfg.Logger),
		trace:  cfg.TraceMessages,
	}
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string { return c.url }

// Call invokes a JSON-RPC method. It serializes the request, sends it with
// optional Basic Auth, and deserializes the response into result.
//
// If params is nil, an empty params array is sent. If result is nil, the
// response result is discarded.
//
// Call returns ErrConnectionFailed if the HTTP request fails, ErrAuthFailed
// on HTTP 401, ErrInvalidResponse if the response cannot be decoded and
// ErrRemote when the server answers with an RPC error.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("network: marshal request: %w", err)
	}
	traceMessage(c.logger, c.trace, "send", method, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("network: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrAuthFailed, c.url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}

	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("%w: rpc error %d: %s", ErrRemote, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	traceMessage(c.logger, c.trace, "recv", method, rpcResp.Result)

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}

	return nil
}

// AskLatestCDD implements IssuerService.
func (c *Client) AskLatestCDD(ctx context.Context) (*currency.CDD, error) {
	var cdd currency.CDD
	if err := c.Call(ctx, MethodAskLatestCDD, []interface{}{protocol.AskLatestCDD{}}, &cdd); err != nil {
		return nil, err
	}
	return &cdd, nil
}

// FetchMintKeys implements IssuerService.
func (c *Client) FetchMintKeys(ctx context.Context, denominations []string) ([]*currency.MintKeyCertificate, error) {
	var mkcs []*currency.MintKeyCertificate
	msg := protocol.FetchMintKeys{Denominations: denominations}
	if err := c.Call(ctx, MethodFetchMintKeys, []interface{}{msg}, &mkcs); err != nil {
		return nil, err
	}
	return mkcs, nil
}

// FetchMintKey implements IssuerService.
func (c *Client) FetchMintKey(ctx context.Context, keyID string) (*currency.MintKeyCertificate, error) {
	var mkc currency.MintKeyCertificate
	msg := protocol.FetchMintKey{KeyID: keyID}
	if err := c.Call(ctx, MethodFetchMintKey, []interface{}{msg}, &mkc); err != nil {
		return nil, err
	}
	return &mkc, nil
}

// RequestTransfer implements IssuerService.
func (c *Client) RequestTransfer(ctx context.Context, req *protocol.TransferRequest) (*protocol.TransferResponse, error) {
	var resp protocol.TransferResponse
	if err := c.Call(ctx, MethodRequestTransfer, []interface{}{req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResumeTransfer implements IssuerService.
func (c *Client) ResumeTransfer(ctx context.Context, transactionID string) (*protocol.TransferResponse, error) {
	var resp protocol.TransferResponse
	msg := protocol.ResumeTransfer{TransactionID: transactionID}
	if err := c.Call(ctx, MethodResumeTransfer, []interface{}{msg}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnnounceSum implements WalletService.
func (c *Client) AnnounceSum(ctx context.Context, msg *protocol.AnnounceSum) (*protocol.AnnounceResponse, error) {
	var resp protocol.AnnounceResponse
	if err := c.Call(ctx, MethodAnnounceSum, []interface{}{msg}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestSpend implements WalletService.
func (c *Client) RequestSpend(ctx context.Context, msg *protocol.RequestSpend) (*protocol.SpendResponse, error) {
	var resp protocol.SpendResponse
	if err := c.Call(ctx, MethodRequestSpend, []interface{}{msg}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
