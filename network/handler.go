package network

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/protocol"
)

// JSON-RPC error codes used by Handler.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServiceError   = -32000
)

// maxRequestBody bounds the size of a request the handler decodes.
const maxRequestBody = 4 << 20

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// User and Password enable HTTP Basic Auth when User is non-empty.
	User     string
	Password string

	Logger *logrus.Logger

	// TraceMessages logs every request and response body at debug level.
	TraceMessages bool
}

// Handler serves IssuerService and WalletService over JSON-RPC 1.0.
// Either service may be nil; its methods then answer with an RPC error.
type Handler struct {
	issuer IssuerService
	wallet WalletService
	opts   HandlerOptions
	logger *logrus.Logger
}

var _ http.Handler = (*Handler)(nil)

// serverRequest is the server side view of rpcRequest with raw params.
type serverRequest struct {
	ID     int64             `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// NewHandler creates an HTTP handler dispatching the JSON-RPC methods of
// the given services.
func NewHandler(issuer IssuerService, wallet WalletService, opts HandlerOptions) *Handler {
	return &Handler{
		issuer: issuer,
		wallet: wallet,
		opts:   opts,
		logger: loggerOrDiscard(opts.Logger),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.opts.User != "" && !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="opencoin"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "read request", http.StatusBadRequest)
		return
	}

	var req serverRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.write(w, rpcResponse{Error: &rpcError{Code: codeParseError, Message: err.Error()}})
		return
	}
	traceMessage(h.logger, h.opts.TraceMessages, "recv", req.Method, body)

	result, rerr := h.dispatch(r.Context(), &req)
	resp := rpcResponse{ID: req.ID, Error: rerr}
	if rerr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = &rpcError{Code: codeServiceError, Message: err.Error()}
		} else {
			resp.Result = raw
		}
	}
	if resp.Error != nil {
		h.logger.WithFields(logrus.Fields{
			"component": "network",
			"method":    req.Method,
			"code":      resp.Error.Code,
		}).Info(resp.Error.Message)
	}
	traceMessage(h.logger, h.opts.TraceMessages, "send", req.Method, resp.Result)
	h.write(w, resp)
}

func (h *Handler) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.opts.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.opts.Password)) == 1
	return userOK && passOK
}

func (h *Handler) write(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.WithError(err).Warn("write rpc response")
	}
}

func (h *Handler) dispatch(ctx context.Context, req *serverRequest) (interface{}, *rpcError) {
	switch req.Method {
	case MethodAskLatestCDD:
		if h.issuer == nil {
			return nil, notServed(req.Method)
		}
		return serviceResult(h.issuer.AskLatestCDD(ctx))

	case MethodFetchMintKeys:
		if h.issuer == nil {
			return nil, notServed(req.Method)
		}
		var msg protocol.FetchMintKeys
		if err := decodeParam(req.Params, &msg); err != nil {
			return nil, err
		}
		return serviceResult(h.issuer.FetchMintKeys(ctx, msg.Denominations))

	case MethodFetchMintKey:
		if h.issuer == nil {
			return nil, notServed(req.Method)
		}
		var msg protocol.FetchMintKey
		if err := decodeParam(req.Params, &msg); err != nil {
			return nil, err
		}
		return serviceResult(h.issuer.FetchMintKey(ctx, msg.KeyID))

	case MethodRequestTransfer:
		if h.issuer == nil {
			return nil, notServed(req.Method)
		}
		var msg protocol.TransferRequest
		if err := decodeParam(req.Params, &msg); err != nil {
			return nil, err
		}
		return serviceResult(h.issuer.RequestTransfer(ctx, &msg))

	case MethodResumeTransfer:
		if h.issuer == nil {
			return nil, notServed(req.Method)
		}
		var msg protocol.ResumeTransfer
		if err := decodeParam(req.Params, &msg); err != nil {
			return nil, err
		}
		return serviceResult(h.issuer.ResumeTransfer(ctx, msg.TransactionID))

	case MethodAnnounceSum:
		if h.wallet == nil {
			return nil, notServed(req.Method)
		}
		var msg protocol.AnnounceSum
		if err := decodeParam(req.Params, &msg); err != nil {
			return nil, err
		}
		return serviceResult(h.wallet.AnnounceSum(ctx, &msg))

	case MethodRequestSpend:
		if h.wallet == nil {
			return nil, notServed(req.Method)
		}
		var msg protocol.RequestSpend
		if err := decodeParam(req.Params, &msg); err != nil {
			return nil, err
		}
		return serviceResult(h.wallet.RequestSpend(ctx, &msg))
	}
	return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
}

func decodeParam(params []json.RawMessage, v interface{}) *rpcError {
	if len(params) != 1 {
		return &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("expected 1 param, got %d", len(params))}
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	return nil
}

func notServed(method string) *rpcError {
	return &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("%v: %s", ErrNotServed, method)}
}

// serviceResult converts a service return into a handler result.
func serviceResult[T any](v T, err error) (interface{}, *rpcError) {
	if err != nil {
		return nil, &rpcError{Code: codeServiceError, Message: err.Error()}
	}
	return v, nil
}

// traceMessage logs a message body at debug level when tracing is enabled.
func traceMessage(logger *logrus.Logger, enabled bool, direction, method string, body []byte) {
	if !enabled {
		return
	}
	logger.WithFields(logrus.Fields{
		"component": "network",
		"direction": direction,
		"method":    method,
	}).Debug(string(body))
}

func loggerOrDiscard(l *logrus.Logger) *logrus.Logger {
	if l != nil {
		return l
	}
	l = logrus.New()
	l.SetOutput(io.Discard)
	return l
}
