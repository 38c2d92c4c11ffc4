package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(endpoint string) *HTTPClient {
	return NewHTTPClient(endpoint, WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	ixData := base58.Encode([]byte{1, 2, 3, 4})
	innerData := base58.Encode([]byte{9, 9})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTransaction", req.Method)

		// Request carries the signature and the versioned-transaction flag.
		assert.Equal(t, "testsig123", req.Params[0])
		opts := req.Params[1].(map[string]interface{})
		assert.EqualValues(t, 0, opts["maxSupportedTransactionVersion"])

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"slot":      int64(123456),
				"blockTime": int64(1700000000),
				"meta": map[string]interface{}{
					"err":         nil,
					"logMessages": []string{"Program log: Instruction: Create"},
					"innerInstructions": []map[string]interface{}{
						{
							"index": 0,
							"instructions": []map[string]interface{}{
								{"programIdIndex": 2, "accounts": []int{0, 1}, "data": innerData},
							},
						},
					},
				},
				"transaction": map[string]interface{}{
					"message": map[string]interface{}{
						"accountKeys": []string{"addr1", "addr2", "addr3"},
						"instructions": []map[string]interface{}{
							{"programIdIndex": 1, "accounts": []int{0, 2}, "data": ixData},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	tx, err := fastClient(server.URL).GetTransaction(context.Background(), "testsig123")
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, int64(123456), tx.Slot)
	assert.Equal(t, int64(1700000000), tx.BlockTime)
	assert.Equal(t, "testsig123", tx.Signature)

	require.NotNil(t, tx.Message)
	assert.Equal(t, []string{"addr1", "addr2", "addr3"}, tx.Message.AccountKeys)

	require.Len(t, tx.Message.Instructions, 1)
	ix := tx.Message.Instructions[0]
	assert.Equal(t, 1, ix.ProgramIDIndex)
	assert.Equal(t, []byte{1, 2, 3, 4}, ix.Data)
	assert.Equal(t, "addr2", ix.ProgramID(tx.Message.AccountKeys))
	assert.Equal(t, []string{"addr1", "addr3"}, ix.ResolveAccounts(tx.Message.AccountKeys))

	require.NotNil(t, tx.Meta)
	require.Len(t, tx.Meta.InnerInstructions, 1)
	inner := tx.Meta.InnerInstructions[0]
	assert.Equal(t, 0, inner.Index)
	require.Len(t, inner.Instructions, 1)
	assert.Equal(t, []byte{9, 9}, inner.Instructions[0].Data)
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  nil,
		})
	}))
	defer server.Close()

	tx, err := fastClient(server.URL).GetTransaction(context.Background(), "missing")
	assert.Nil(t, tx)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, ClassifyKind(err))
	assert.True(t, IsRetryable(err))
}

func TestHTTPClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": nil},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
		WithMaxRetries(3))
	client.backoff = Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond}

	info, err := client.GetAccountInfo(context.Background(), "somekey")
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPClient_ExhaustedRetriesSurfaceTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
		WithMaxRetries(1))
	client.backoff = Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond}

	_, err := client.GetTransaction(context.Background(), "sig")
	require.Error(t, err)
	assert.Equal(t, KindTransient, ClassifyKind(err))
}

func TestHTTPClient_MalformedBodyNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	_, err := fastClient(server.URL).GetTransaction(context.Background(), "sig")
	require.Error(t, err)
	assert.Equal(t, KindMalformed, ClassifyKind(err))
	assert.False(t, IsRetryable(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "invalid params"},
		})
	}))
	defer server.Close()

	_, err := fastClient(server.URL).GetTransaction(context.Background(), "sig")
	require.Error(t, err)
	assert.Equal(t, KindProtocol, ClassifyKind(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "getAccountInfo", req.Method)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"lamports":   uint64(12345),
					"owner":      "ownerkey",
					"data":       []string{"aGVsbG8=", "base64"},
					"executable": false,
				},
			},
		})
	}))
	defer server.Close()

	info, err := fastClient(server.URL).GetAccountInfo(context.Background(), "acct")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint64(12345), info.Lamports)
	assert.Equal(t, "ownerkey", info.Owner)
	assert.Equal(t, []byte("hello"), info.Data)
}
