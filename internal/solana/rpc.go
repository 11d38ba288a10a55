package solana

import (
	"context"
	"errors"
)

// Errors returned by the ledger access port.
var (
	// ErrNotFound is returned when an address does not resolve to an account.
	ErrNotFound = errors.New("account not found")

	// ErrNotAMint is returned when an address resolves to an account that is
	// not a fungible-asset mint.
	ErrNotAMint = errors.New("account is not a token mint")
)

// Client defines the Solana RPC capabilities this service consumes. The
// aggregation core never talks to the network directly; everything flows
// through this interface, which keeps tests on the stub implementation.
type Client interface {
	// GetMintInfo retrieves mint metadata (decimals, raw supply, owning
	// token program). Returns ErrNotFound or ErrNotAMint when the address
	// does not resolve to a fungible-asset mint.
	GetMintInfo(ctx context.Context, mint string) (*MintInfo, error)

	// GetTokenHolders retrieves current token-account balances for a mint.
	// The same owner may appear more than once.
	GetTokenHolders(ctx context.Context, mint, programID string) ([]TokenHolder, error)

	// GetSignatures retrieves recent transaction signatures for an address,
	// most recent first. Best-effort; may fail per address.
	GetSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error)

	// GetParsedTransaction retrieves one jsonParsed transaction. Returns
	// (nil, nil) when the node could not retrieve it.
	GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error)
}
