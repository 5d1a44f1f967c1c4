package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "testuser", user)
		assert.Equal(t, "testpass", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, MethodResumeTransfer, req.Method)

		resp := rpcResponse{ID: req.ID, Result: json.RawMessage(`{"header":"TransferDelay"}`)}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL, User: "testuser", Password: "testpass"})
	resp, err := client.ResumeTransfer(context.Background(), "tid")
	require.NoError(t, err)
	assert.Equal(t, "TransferDelay", string(resp.Header))
}

func TestClientRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := rpcResponse{
			ID:    req.ID,
			Error: &rpcError{Code: codeServiceError, Message: "issuer: no currency description"},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL})
	_, err := client.AskLatestCDD(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "no currency description")
}

func TestClientHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL})
	err := client.Call(context.Background(), MethodAskLatestCDD, nil, nil)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestClientConnectionError(t *testing.T) {
	client := NewClient(ClientConfig{URL: "http://localhost:1"})
	_, err := client.AskLatestCDD(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestClientContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.Call(ctx, MethodAskLatestCDD, nil, nil)
	require.Error(t, err)
}

func TestClientSequentialIDs(t *testing.T) {
	var ids []int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		ids = append(ids, req.ID)
		resp := rpcResponse{ID: req.ID, Result: json.RawMessage(`null`)}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL})
	for i := 0; i < 3; i++ {
		client.Call(context.Background(), MethodAskLatestCDD, nil, nil)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestClientIDMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rpcResponse{ID: 99, Result: json.RawMessage(`null`)})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL})
	err := client.Call(context.Background(), MethodAskLatestCDD, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClientMalformedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(rpcResponse{ID: req.ID, Result: json.RawMessage(`"not an object"`)})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL})
	_, err := client.ResumeTransfer(context.Background(), "tid")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
