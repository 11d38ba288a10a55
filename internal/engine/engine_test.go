package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-token-atlas/internal/domain"
	"solana-token-atlas/internal/scan"
	"solana-token-atlas/internal/solana"
	"solana-token-atlas/internal/solana/stub"
)

// The wrapped-SOL mint doubles as a syntactically valid test subject.
const testMint = solana.WrappedSOLMint

// Board fixtures need owners that pass the on-curve wallet filter; the
// Raydium AMM authority is a real program-derived address and does not.
const (
	walletWhale      = "BJWRcwmYbVya3Pq7aVHwV26mKzAZKxkE9Kap9oHjLqwK"
	walletMinnow     = "7j2MYUnUBQfrP6xJrWHB8nMmTbKKVRcPFC1ybWwH1jAd"
	raydiumAuthority = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
)

func newTestEngine(t *testing.T, client *stub.Client, opts ...Option) *Engine {
	t.Helper()
	scanner, err := scan.NewScanner(client, zap.NewNop())
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	t.Cleanup(scanner.Close)

	opts = append([]Option{WithClock(func() time.Time { return time.Unix(1700000000, 0) })}, opts...)
	return New(client, scanner, zap.NewNop(), time.Minute, opts...)
}

func seedMint(client *stub.Client, decimals int, supplyRaw string) {
	client.Mints[testMint] = &solana.MintInfo{
		Mint:        testMint,
		Decimals:    decimals,
		SupplyRaw:   supplyRaw,
		ProgramID:   solana.TokenProgramID,
		DisplayName: "Test Token",
	}
}

func bt(v int64) *int64 { return &v }

// transferTx moves amount of testMint between two owners' token accounts.
func transferTx(sig, fromOwner, toOwner, amount string) *solana.ParsedTransaction {
	return &solana.ParsedTransaction{
		Signature: sig,
		BlockTime: 1699990000,
		Message: &solana.TransactionMessage{
			AccountKeys: []solana.AccountKey{
				{Pubkey: "fee-payer"},
				{Pubkey: "src-" + fromOwner},
				{Pubkey: "dst-" + toOwner},
			},
			Instructions: []solana.ParsedInstruction{
				{
					Program:   "spl-token",
					ProgramID: solana.TokenProgramID,
					Parsed: &solana.InstructionDetail{
						Type: "transfer",
						Info: solana.InstructionInfo{
							Source:      "src-" + fromOwner,
							Destination: "dst-" + toOwner,
							Amount:      amount,
						},
					},
				},
			},
		},
		Meta: &solana.TransactionMeta{
			PreTokenBalances: []solana.TokenBalance{
				{AccountIndex: 1, Mint: testMint, Owner: fromOwner, UITokenAmount: solana.TokenAmount{Amount: "1000", Decimals: 0}},
				{AccountIndex: 2, Mint: testMint, Owner: toOwner, UITokenAmount: solana.TokenAmount{Amount: "0", Decimals: 0}},
			},
			PostTokenBalances: []solana.TokenBalance{
				{AccountIndex: 1, Mint: testMint, Owner: fromOwner, UITokenAmount: solana.TokenAmount{Amount: "900", Decimals: 0}},
				{AccountIndex: 2, Mint: testMint, Owner: toOwner, UITokenAmount: solana.TokenAmount{Amount: "100", Decimals: 0}},
			},
		},
	}
}

// buyTx has wallet gaining qty of asset against a wrapped-SOL outflow.
func buyTx(sig string, blockTime int64, wallet, asset, qty, quoteLamports string) *solana.ParsedTransaction {
	return &solana.ParsedTransaction{
		Signature: sig,
		BlockTime: blockTime,
		Message: &solana.TransactionMessage{
			AccountKeys: []solana.AccountKey{
				{Pubkey: wallet}, {Pubkey: "token-acct"}, {Pubkey: "wsol-acct"},
			},
		},
		Meta: &solana.TransactionMeta{
			PreTokenBalances: []solana.TokenBalance{
				{AccountIndex: 1, Mint: asset, Owner: wallet, UITokenAmount: solana.TokenAmount{Amount: "0", Decimals: 0}},
				{AccountIndex: 2, Mint: solana.WrappedSOLMint, Owner: wallet, UITokenAmount: solana.TokenAmount{Amount: quoteLamports, Decimals: 9}},
			},
			PostTokenBalances: []solana.TokenBalance{
				{AccountIndex: 1, Mint: asset, Owner: wallet, UITokenAmount: solana.TokenAmount{Amount: qty, Decimals: 0}},
				{AccountIndex: 2, Mint: solana.WrappedSOLMint, Owner: wallet, UITokenAmount: solana.TokenAmount{Amount: "0", Decimals: 9}},
			},
		},
	}
}

func TestBuildSnapshot(t *testing.T) {
	client := stub.NewClient()
	seedMint(client, 0, "1000")
	client.Holders[testMint] = []solana.TokenHolder{
		{Owner: "alice", AmountRaw: "600", Decimals: 0},
		{Owner: "bob", AmountRaw: "300", Decimals: 0},
		{Owner: "carol", AmountRaw: "100", Decimals: 0},
	}
	client.Signatures["alice"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.AddTransaction(transferTx("sig1", "alice", "bob", "100"))

	eng := newTestEngine(t, client)
	snap, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{})
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}

	if snap.Mint != testMint || snap.Name != "Test Token" {
		t.Errorf("snapshot identity: %+v", snap)
	}
	if !snap.Supply.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("supply: got %s, want 1000", snap.Supply)
	}
	if len(snap.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(snap.Nodes))
	}
	if snap.Nodes[0].Address != "alice" || snap.Nodes[0].PctSupply != 60 {
		t.Errorf("top node: %+v", snap.Nodes[0])
	}
	if len(snap.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(snap.Edges))
	}
	if snap.Edges[0].From != "alice" || snap.Edges[0].To != "bob" {
		t.Errorf("edge direction: %+v", snap.Edges[0])
	}
	if !snap.Edges[0].AmountSum.Equal(decimal.NewFromInt(100)) {
		t.Errorf("edge amount: got %s", snap.Edges[0].AmountSum)
	}
	if snap.GeneratedAt != 1700000000 {
		t.Errorf("generatedAt: got %d", snap.GeneratedAt)
	}
}

func TestBuildSnapshot_InvalidSubject(t *testing.T) {
	client := stub.NewClient()
	eng := newTestEngine(t, client)

	_, err := eng.BuildSnapshot(context.Background(), "not-an-address", SnapshotOptions{})
	if !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}
	if client.MintCalls != 0 {
		t.Errorf("invalid subject must not reach the network, got %d calls", client.MintCalls)
	}
}

func TestBuildSnapshot_MintInfoFatal(t *testing.T) {
	client := stub.NewClient()
	client.MintErr = errors.New("node down")

	eng := newTestEngine(t, client)
	if _, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{}); err == nil {
		t.Fatal("expected mint-info failure to be fatal")
	}
}

func TestBuildSnapshot_NotAMint(t *testing.T) {
	client := stub.NewClient()
	client.MintErr = solana.ErrNotAMint

	eng := newTestEngine(t, client)
	_, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{})
	if !errors.Is(err, solana.ErrNotAMint) {
		t.Fatalf("expected wrapped ErrNotAMint, got %v", err)
	}
}

func TestBuildSnapshot_Cached(t *testing.T) {
	client := stub.NewClient()
	seedMint(client, 0, "100")
	client.Holders[testMint] = []solana.TokenHolder{{Owner: "alice", AmountRaw: "100", Decimals: 0}}

	eng := newTestEngine(t, client)
	if _, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{}); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if client.MintCalls != 1 {
		t.Errorf("expected cache hit on second build, got %d mint calls", client.MintCalls)
	}
}

func TestBuildSnapshot_DistinctOptionsDistinctKeys(t *testing.T) {
	client := stub.NewClient()
	seedMint(client, 0, "100")
	client.Holders[testMint] = []solana.TokenHolder{{Owner: "alice", AmountRaw: "100", Decimals: 0}}

	eng := newTestEngine(t, client)
	if _, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{TopN: 5}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{TopN: 10}); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if client.MintCalls != 2 {
		t.Errorf("different options must not share a key, got %d mint calls", client.MintCalls)
	}
}

func TestBuildSnapshot_ForceRefresh(t *testing.T) {
	client := stub.NewClient()
	seedMint(client, 0, "100")
	client.Holders[testMint] = []solana.TokenHolder{{Owner: "alice", AmountRaw: "100", Decimals: 0}}

	eng := newTestEngine(t, client)
	if _, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{ForceRefresh: true}); err != nil {
		t.Fatalf("forced build: %v", err)
	}
	if client.MintCalls != 2 {
		t.Errorf("forced refresh must bypass the cache, got %d mint calls", client.MintCalls)
	}
	// The forced result was written back and serves the next lookup.
	if _, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{}); err != nil {
		t.Fatalf("third build: %v", err)
	}
	if client.MintCalls != 2 {
		t.Errorf("forced result should serve subsequent lookups, got %d mint calls", client.MintCalls)
	}
}

func TestBuildSnapshot_EdgeWalletSubset(t *testing.T) {
	client := stub.NewClient()
	seedMint(client, 0, "1000")
	client.Holders[testMint] = []solana.TokenHolder{
		{Owner: "alice", AmountRaw: "600", Decimals: 0},
		{Owner: "bob", AmountRaw: "400", Decimals: 0},
	}
	client.Signatures["alice"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.AddTransaction(transferTx("sig1", "alice", "bob", "100"))

	eng := newTestEngine(t, client)
	snap, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{EdgeWallets: 1})
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}

	if len(snap.Nodes) != 2 {
		t.Errorf("node list must keep the full topN, got %d", len(snap.Nodes))
	}
	// bob is outside the edge-wallet subset; no edge survives.
	if len(snap.Edges) != 0 {
		t.Errorf("expected no edges outside the subset, got %+v", snap.Edges)
	}
	if client.SignatureCalls != 1 {
		t.Errorf("only edge wallets are scanned, got %d signature calls", client.SignatureCalls)
	}
}

func TestBuildSnapshot_PartialSignatureFailureTolerated(t *testing.T) {
	client := stub.NewClient()
	seedMint(client, 0, "1000")
	client.Holders[testMint] = []solana.TokenHolder{
		{Owner: "alice", AmountRaw: "600", Decimals: 0},
		{Owner: "bob", AmountRaw: "400", Decimals: 0},
	}
	client.Signatures["alice"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.SignatureErrs["bob"] = errors.New("rpc timeout")
	client.AddTransaction(transferTx("sig1", "alice", "bob", "100"))

	eng := newTestEngine(t, client)
	snap, err := eng.BuildSnapshot(context.Background(), testMint, SnapshotOptions{})
	if err != nil {
		t.Fatalf("partial failure must not abort: %v", err)
	}
	if len(snap.Edges) != 1 {
		t.Errorf("surviving wallet data should still build edges, got %d", len(snap.Edges))
	}
}

func TestBuildBoard(t *testing.T) {
	client := stub.NewClient()
	client.Signatures["prog-r"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.AddTransaction(buyTx("sig1", 1699990000, walletWhale, "asset1", "100", "4000000000"))

	eng := newTestEngine(t, client, WithSources(map[domain.Source]string{
		domain.SourceRaydium: "prog-r",
		domain.SourcePumpFun: "prog-p",
	}))

	board, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{})
	if err != nil {
		t.Fatalf("BuildBoard: %v", err)
	}
	if len(board.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(board.Entries))
	}
	e := board.Entries[0]
	if e.Source != domain.SourceRaydium || e.Wallet != walletWhale {
		t.Errorf("entry identity: %+v", e)
	}
	if !e.BuyVolume.Equal(decimal.NewFromInt(4)) {
		t.Errorf("buy volume: got %s, want 4", e.BuyVolume)
	}
	if board.ScannedSigs != 1 || board.ScannedTxs != 1 {
		t.Errorf("scan counters: %+v", board)
	}
}

func TestBuildBoard_MultiSourceTagging(t *testing.T) {
	client := stub.NewClient()
	// Both programs list the same transaction.
	client.Signatures["prog-r"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.Signatures["prog-p"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.AddTransaction(buyTx("sig1", 1699990000, walletWhale, "asset1", "100", "4000000000"))

	eng := newTestEngine(t, client, WithSources(map[domain.Source]string{
		domain.SourceRaydium: "prog-r",
		domain.SourcePumpFun: "prog-p",
	}))

	board, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{})
	if err != nil {
		t.Fatalf("BuildBoard: %v", err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected one entry per source tag, got %d", len(board.Entries))
	}
	if board.ScannedTxs != 1 {
		t.Errorf("deduped transaction must parse once, got %d", board.ScannedTxs)
	}
}

func TestBuildBoard_MinTotalThreshold(t *testing.T) {
	client := stub.NewClient()
	client.Signatures["prog-r"] = []solana.SignatureInfo{
		{Signature: "sig1", BlockTime: bt(1699990000)},
		{Signature: "sig2", BlockTime: bt(1699990001)},
	}
	client.AddTransaction(buyTx("sig1", 1699990000, walletWhale, "asset1", "100", "9000000000"))
	client.AddTransaction(buyTx("sig2", 1699990001, walletMinnow, "asset1", "100", "1000000000"))

	eng := newTestEngine(t, client, WithSources(map[domain.Source]string{
		domain.SourceRaydium: "prog-r",
	}))

	board, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{MinTotal: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("BuildBoard: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].Wallet != walletWhale {
		t.Fatalf("threshold filter failed: %+v", board.Entries)
	}
}

func TestBuildBoard_InvalidSubject(t *testing.T) {
	client := stub.NewClient()
	eng := newTestEngine(t, client)

	if _, err := eng.BuildBoard(context.Background(), "bogus", BoardOptions{}); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}
}

func TestBuildBoard_Cached(t *testing.T) {
	client := stub.NewClient()
	client.Signatures["prog-r"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.AddTransaction(buyTx("sig1", 1699990000, walletWhale, "asset1", "100", "4000000000"))

	eng := newTestEngine(t, client, WithSources(map[domain.Source]string{
		domain.SourceRaydium: "prog-r",
	}))

	if _, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	calls := client.SignatureCalls
	if _, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{}); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if client.SignatureCalls != calls {
		t.Errorf("expected cache hit, signature calls went %d -> %d", calls, client.SignatureCalls)
	}
}

func TestBuildBoard_IndependentCacheTTL(t *testing.T) {
	client := stub.NewClient()
	client.Signatures["prog-r"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.AddTransaction(buyTx("sig1", 1699990000, walletWhale, "asset1", "100", "4000000000"))

	// Board caching disabled independently of the snapshot TTL.
	eng := newTestEngine(t, client,
		WithSources(map[domain.Source]string{domain.SourceRaydium: "prog-r"}),
		WithBoardCacheTTL(0))

	if _, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	calls := client.SignatureCalls
	if _, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{}); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if client.SignatureCalls == calls {
		t.Error("zero board TTL must rebuild, second call served from cache")
	}
}

func TestBuildBoard_PartialProgramFailure(t *testing.T) {
	client := stub.NewClient()
	client.Signatures["prog-r"] = []solana.SignatureInfo{{Signature: "sig1", BlockTime: bt(1699990000)}}
	client.SignatureErrs["prog-p"] = errors.New("rate limited")
	client.AddTransaction(buyTx("sig1", 1699990000, walletWhale, "asset1", "100", "4000000000"))

	eng := newTestEngine(t, client, WithSources(map[domain.Source]string{
		domain.SourceRaydium: "prog-r",
		domain.SourcePumpFun: "prog-p",
	}))

	board, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{})
	if err != nil {
		t.Fatalf("partial program failure must not abort: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].Source != domain.SourceRaydium {
		t.Fatalf("expected the healthy program's entry, got %+v", board.Entries)
	}
}

func TestBuildBoard_ExcludesProgramDerivedOwners(t *testing.T) {
	client := stub.NewClient()
	client.Signatures["prog-r"] = []solana.SignatureInfo{
		{Signature: "sig1", BlockTime: bt(1699990000)},
		{Signature: "sig2", BlockTime: bt(1699990001)},
	}
	client.AddTransaction(buyTx("sig1", 1699990000, walletWhale, "asset1", "100", "4000000000"))
	// The pool authority's deltas mirror the trade but it is not a wallet.
	client.AddTransaction(buyTx("sig2", 1699990001, raydiumAuthority, "asset1", "100", "4000000000"))

	eng := newTestEngine(t, client, WithSources(map[domain.Source]string{
		domain.SourceRaydium: "prog-r",
	}))

	board, err := eng.BuildBoard(context.Background(), testMint, BoardOptions{})
	if err != nil {
		t.Fatalf("BuildBoard: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].Wallet != walletWhale {
		t.Fatalf("off-curve owner must not rank: %+v", board.Entries)
	}
	if board.ScannedTxs != 2 {
		t.Errorf("both transactions still count as scanned, got %d", board.ScannedTxs)
	}
}
