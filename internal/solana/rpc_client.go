package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
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

// call performs a JSON-RPC call with retries and exponential backoff.
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

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetMintInfo retrieves mint metadata via getAccountInfo (jsonParsed).
func (c *HTTPClient) GetMintInfo(ctx context.Context, mint string) (*MintInfo, error) {
	params := []interface{}{
		mint,
		map[string]interface{}{
			"encoding": "jsonParsed",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, fmt.Errorf("%s: %w", mint, ErrNotFound)
	}

	owner := result.Value.Owner
	if owner != TokenProgramID && owner != Token2022ProgramID {
		return nil, fmt.Errorf("%s owned by %s: %w", mint, owner, ErrNotAMint)
	}

	var data struct {
		Parsed struct {
			Type string `json:"type"`
			Info struct {
				Decimals   int    `json:"decimals"`
				Supply     string `json:"supply"`
				Extensions []struct {
					Extension string `json:"extension"`
					State     struct {
						Name string `json:"name"`
					} `json:"state"`
				} `json:"extensions"`
			} `json:"info"`
		} `json:"parsed"`
	}
	if err := json.Unmarshal(result.Value.Data, &data); err != nil {
		return nil, fmt.Errorf("%s: unparsable account data: %w", mint, ErrNotAMint)
	}
	if data.Parsed.Type != "mint" {
		return nil, fmt.Errorf("%s is a %q account: %w", mint, data.Parsed.Type, ErrNotAMint)
	}

	info := &MintInfo{
		Mint:      mint,
		Decimals:  data.Parsed.Info.Decimals,
		SupplyRaw: data.Parsed.Info.Supply,
		ProgramID: owner,
	}

	// Token-2022 carries the display name on-chain as a metadata extension.
	for _, ext := range data.Parsed.Info.Extensions {
		if ext.Extension == "tokenMetadata" {
			info.DisplayName = ext.State.Name
		}
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *struct {
		Lamports uint64          `json:"lamports"`
		Owner    string          `json:"owner"`
		Data     json.RawMessage `json:"data"`
	} `json:"value"`
}

// GetTokenHolders retrieves all token accounts of a mint via
// getProgramAccounts with a memcmp filter on the mint field.
func (c *HTTPClient) GetTokenHolders(ctx context.Context, mint, programID string) ([]TokenHolder, error) {
	filters := []interface{}{
		map[string]interface{}{
			"memcmp": map[string]interface{}{"offset": 0, "bytes": mint},
		},
	}
	// Token-2022 accounts carry variable-length extensions, so the fixed
	// dataSize filter only applies to the legacy token program.
	if programID == TokenProgramID {
		filters = append(filters, map[string]interface{}{"dataSize": 165})
	}

	params := []interface{}{
		programID,
		map[string]interface{}{
			"encoding": "jsonParsed",
			"filters":  filters,
		},
	}

	var result []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Owner       string      `json:"owner"`
						TokenAmount TokenAmount `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	}
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}

	holders := make([]TokenHolder, 0, len(result))
	for _, acc := range result {
		info := acc.Account.Data.Parsed.Info
		if info.Owner == "" || info.TokenAmount.Amount == "" {
			continue
		}
		holders = append(holders, TokenHolder{
			Owner:     info.Owner,
			AmountRaw: info.TokenAmount.Amount,
			Decimals:  info.TokenAmount.Decimals,
		})
	}

	return holders, nil
}

// GetSignatures retrieves signatures for an address, most recent first.
func (c *HTTPClient) GetSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if limit > 0 {
		config["limit"] = limit
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []struct {
		Signature string      `json:"signature"`
		Slot      int64       `json:"slot"`
		BlockTime *int64      `json:"blockTime"`
		Err       interface{} `json:"err"`
	}
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}

	return sigs, nil
}

// GetParsedTransaction retrieves a jsonParsed transaction by signature.
// Returns (nil, nil) when the node does not have the transaction.
func (c *HTTPClient) GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result struct {
		Slot        int64            `json:"slot"`
		BlockTime   *int64           `json:"blockTime"`
		Meta        *TransactionMeta `json:"meta"`
		Transaction *struct {
			Message *TransactionMessage `json:"message"`
		} `json:"transaction"`
	}
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Slot == 0 && result.BlockTime == nil {
		// Transaction not found
		return nil, nil
	}

	tx := &ParsedTransaction{
		Slot:      result.Slot,
		Signature: signature,
		Meta:      result.Meta,
	}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}
	if result.Transaction != nil {
		tx.Message = result.Transaction.Message
	}

	return tx, nil
}
