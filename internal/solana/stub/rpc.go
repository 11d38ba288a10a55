package stub

import (
	"context"
	"sync"

	"solana-token-atlas/internal/solana"
)

// Client implements solana.Client for testing. Fixture maps are keyed the
// same way the real node keys its responses; per-address error injection
// simulates partial upstream failures.
type Client struct {
	mu sync.Mutex

	Mints        map[string]*solana.MintInfo
	Holders      map[string][]solana.TokenHolder
	Signatures   map[string][]solana.SignatureInfo
	Transactions map[string]*solana.ParsedTransaction

	// MintErr fails GetMintInfo for every mint when set.
	MintErr error
	// SignatureErrs fails GetSignatures for specific addresses.
	SignatureErrs map[string]error
	// TransactionErrs fails GetParsedTransaction for specific signatures.
	TransactionErrs map[string]error

	// Call counters for asserting on fetch behavior.
	MintCalls        int
	HolderCalls      int
	SignatureCalls   int
	TransactionCalls int
}

// NewClient creates a new stub RPC client.
func NewClient() *Client {
	return &Client{
		Mints:           make(map[string]*solana.MintInfo),
		Holders:         make(map[string][]solana.TokenHolder),
		Signatures:      make(map[string][]solana.SignatureInfo),
		Transactions:    make(map[string]*solana.ParsedTransaction),
		SignatureErrs:   make(map[string]error),
		TransactionErrs: make(map[string]error),
	}
}

// GetMintInfo retrieves mint metadata from the stub store.
func (c *Client) GetMintInfo(_ context.Context, mint string) (*solana.MintInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MintCalls++

	if c.MintErr != nil {
		return nil, c.MintErr
	}
	info, ok := c.Mints[mint]
	if !ok {
		return nil, solana.ErrNotFound
	}
	return info, nil
}

// GetTokenHolders retrieves token-account balances from the stub store.
func (c *Client) GetTokenHolders(_ context.Context, mint, _ string) ([]solana.TokenHolder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HolderCalls++
	return c.Holders[mint], nil
}

// GetSignatures retrieves signatures for an address from the stub store.
func (c *Client) GetSignatures(_ context.Context, address string, limit int) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SignatureCalls++

	if err, ok := c.SignatureErrs[address]; ok {
		return nil, err
	}
	sigs := c.Signatures[address]
	if limit > 0 && limit < len(sigs) {
		return sigs[:limit], nil
	}
	return sigs, nil
}

// GetParsedTransaction retrieves a transaction from the stub store.
// Unknown signatures return (nil, nil), matching the node's "could not
// retrieve" behavior.
func (c *Client) GetParsedTransaction(_ context.Context, signature string) (*solana.ParsedTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TransactionCalls++

	if err, ok := c.TransactionErrs[signature]; ok {
		return nil, err
	}
	return c.Transactions[signature], nil
}

// AddTransaction adds a transaction to the stub store.
func (c *Client) AddTransaction(tx *solana.ParsedTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// SetSignatures replaces the signature list for an address. Safe to call
// while a consumer is polling.
func (c *Client) SetSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// SetMintErr swaps the injected GetMintInfo failure at runtime.
func (c *Client) SetMintErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MintErr = err
}
