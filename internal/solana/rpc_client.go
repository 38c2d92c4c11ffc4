package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	backoff    Backoff
	requestID  atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		backoff:    Backoff{Base: DefaultRetryDelay, Max: DefaultMaxDelay},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call. Transient failures (429 and other non-200
// statuses, transport errors) are retried with exponential backoff and jitter; everything else surfaces
// immediately with its classification.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	backoff := c.backoff
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.Next()):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &UpstreamError{Kind: KindTransient, Op: method, Err: err}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &UpstreamError{Kind: KindTransient, Op: method, Err: err}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &UpstreamError{Kind: KindTransient, Op: method, Err: errors.New("rate limited (429)")}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = &UpstreamError{Kind: KindTransient, Op: method,
				Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))}
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return &UpstreamError{Kind: KindMalformed, Op: method, Err: fmt.Errorf("unmarshal response: %w", err)}
		}

		if rpcResp.Error != nil {
			// RPC-level errors are not retried.
			return &UpstreamError{Kind: KindProtocol, Op: method, Err: rpcResp.Error}
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return &UpstreamError{Kind: KindMalformed, Op: method, Err: fmt.Errorf("unmarshal result: %w", err)}
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetTransaction retrieves a full transaction by signature, including inner
// instructions and the transaction-wide account key list.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result == nil {
		// Commitment level has not caught up to the signature yet.
		return nil, &UpstreamError{Kind: KindNotFound, Op: "getTransaction", Err: ErrNotFound}
	}

	tx := &Transaction{
		Slot:      result.Slot,
		Signature: signature,
	}

	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Meta != nil {
		tx.Meta = &TransactionMeta{
			Err:         result.Meta.Err,
			LogMessages: result.Meta.LogMessages,
		}
		for _, inner := range result.Meta.InnerInstructions {
			set := InnerInstructionSet{Index: inner.Index}
			for _, raw := range inner.Instructions {
				ix, err := raw.compile()
				if err != nil {
					return nil, &UpstreamError{Kind: KindMalformed, Op: "getTransaction", Err: err}
				}
				set.Instructions = append(set.Instructions, ix)
			}
			tx.Meta.InnerInstructions = append(tx.Meta.InnerInstructions, set)
		}
	}

	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys: result.Transaction.Message.AccountKeys,
		}
		for _, raw := range result.Transaction.Message.Instructions {
			ix, err := raw.compile()
			if err != nil {
				return nil, &UpstreamError{Kind: KindMalformed, Op: "getTransaction", Err: err}
			}
			tx.Message.Instructions = append(tx.Message.Instructions, ix)
		}
	}

	return tx, nil
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err               interface{}            `json:"err"`
	LogMessages       []string               `json:"logMessages"`
	InnerInstructions []getInnerInstructions `json:"innerInstructions"`
}

type getInnerInstructions struct {
	Index        int              `json:"index"`
	Instructions []rawInstruction `json:"instructions"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys  []string         `json:"accountKeys"`
	Instructions []rawInstruction `json:"instructions"`
}

// rawInstruction is an instruction as returned by encoding=json: the data
// field is base58 text.
type rawInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

func (r rawInstruction) compile() (CompiledInstruction, error) {
	data, err := base58.Decode(r.Data)
	if err != nil {
		return CompiledInstruction{}, fmt.Errorf("decode instruction data: %w", err)
	}
	return CompiledInstruction{
		ProgramIDIndex: r.ProgramIDIndex,
		Accounts:       r.Accounts,
		Data:           data,
	}, nil
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if the account does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
	}

	if len(result.Value.Data) >= 1 {
		raw, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
		if err != nil {
			return nil, &UpstreamError{Kind: KindMalformed, Op: "getAccountInfo",
				Err: fmt.Errorf("decode account data: %w", err)}
		}
		info.Data = raw
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
}
