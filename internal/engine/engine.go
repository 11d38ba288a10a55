// Package engine orchestrates the aggregation pipelines: holder snapshot
// (holders + transfer graph) and high-volume wallet board (trade
// classification + ranking), both behind a TTL result cache.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-token-atlas/internal/cache"
	"solana-token-atlas/internal/domain"
	"solana-token-atlas/internal/graph"
	"solana-token-atlas/internal/holders"
	"solana-token-atlas/internal/observability"
	"solana-token-atlas/internal/scan"
	"solana-token-atlas/internal/solana"
	"solana-token-atlas/internal/trades"
)

// ErrInvalidSubject is returned when the requested subject is not a
// plausible on-chain address. Fatal to the single request, never retried.
var ErrInvalidSubject = errors.New("invalid subject address")

// DefaultSources maps source tags to the DEX program IDs scanned for the
// high-volume board.
var DefaultSources = map[domain.Source]string{
	domain.SourceRaydium: "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
	domain.SourcePumpFun: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
}

// SnapshotOptions bound the holder snapshot pipeline. Zero values take the
// defaults below.
type SnapshotOptions struct {
	// TopN is how many ranked holder nodes to emit.
	TopN int
	// EdgeWallets caps how many of the top nodes participate in the
	// transfer graph.
	EdgeWallets int
	// SignatureLimit is the per-wallet recent-signature fetch size.
	SignatureLimit int
	// MaxSignatures caps the merged signature list.
	MaxSignatures int
	// ForceRefresh bypasses the cache lookup but still stores the result.
	ForceRefresh bool
}

// WithDefaults fills zero-valued fields with the default bounds.
func (o SnapshotOptions) WithDefaults() SnapshotOptions {
	if o.TopN <= 0 {
		o.TopN = 20
	}
	if o.EdgeWallets <= 0 {
		o.EdgeWallets = 10
	}
	if o.SignatureLimit <= 0 {
		o.SignatureLimit = 20
	}
	if o.MaxSignatures <= 0 {
		o.MaxSignatures = 100
	}
	return o
}

// CacheKey is the canonical cache key for these options: the subject plus
// every option that affects the result.
func (o SnapshotOptions) CacheKey(mint string) string {
	o = o.WithDefaults()
	return fmt.Sprintf("snapshot:%s:top=%d:edges=%d:siglimit=%d:maxsigs=%d",
		mint, o.TopN, o.EdgeWallets, o.SignatureLimit, o.MaxSignatures)
}

// BoardOptions bound the high-volume board pipeline.
type BoardOptions struct {
	// Limit is the ranked-entry truncation size.
	Limit int
	// MinTotal excludes wallets whose buy+sell volume stays below it.
	MinTotal decimal.Decimal
	// SignatureLimit is the per-program recent-signature fetch size.
	SignatureLimit int
	// MaxSignatures caps the merged signature list.
	MaxSignatures int
	// ForceRefresh bypasses the cache lookup but still stores the result.
	ForceRefresh bool
}

func (o BoardOptions) withDefaults() BoardOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.SignatureLimit <= 0 {
		o.SignatureLimit = 50
	}
	if o.MaxSignatures <= 0 {
		o.MaxSignatures = 100
	}
	return o
}

// CacheKey is the canonical cache key for these options.
func (o BoardOptions) CacheKey(mint string) string {
	o = o.withDefaults()
	return fmt.Sprintf("board:%s:limit=%d:min=%s:siglimit=%d:maxsigs=%d",
		mint, o.Limit, o.MinTotal.String(), o.SignatureLimit, o.MaxSignatures)
}

// Engine runs the two aggregation pipelines against a ledger client.
type Engine struct {
	client  solana.Client
	scanner *scan.Scanner
	log     *zap.Logger

	sources  map[domain.Source]string
	now      func() time.Time
	metrics  *observability.Metrics
	boardTTL *time.Duration

	snapshots *cache.Cache[*domain.Snapshot]
	boards    *cache.Cache[*domain.Board]
}

// Option configures an Engine.
type Option func(*Engine)

// WithSources overrides the source-tag → program-ID map.
func WithSources(sources map[domain.Source]string) Option {
	return func(e *Engine) {
		e.sources = sources
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithBoardCacheTTL gives the board cache its own TTL instead of sharing the
// snapshot one.
func WithBoardCacheTTL(d time.Duration) Option {
	return func(e *Engine) {
		e.boardTTL = &d
	}
}

// New creates an Engine. cacheTTL <= 0 disables result caching.
func New(client solana.Client, scanner *scan.Scanner, log *zap.Logger, cacheTTL time.Duration, opts ...Option) *Engine {
	e := &Engine{
		client:  client,
		scanner: scanner,
		log:     log,
		sources: DefaultSources,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	boardTTL := cacheTTL
	if e.boardTTL != nil {
		boardTTL = *e.boardTTL
	}
	e.snapshots = cache.New[*domain.Snapshot](cacheTTL, cache.WithClock[*domain.Snapshot](func() time.Time { return e.now() }))
	e.boards = cache.New[*domain.Board](boardTTL, cache.WithClock[*domain.Board](func() time.Time { return e.now() }))
	return e
}

// BuildSnapshot produces the holder-concentration snapshot for a mint.
func (e *Engine) BuildSnapshot(ctx context.Context, mint string, opts SnapshotOptions) (*domain.Snapshot, error) {
	if err := solana.ValidateAddress(mint); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, mint)
	}
	opts = opts.WithDefaults()

	key := opts.CacheKey(mint)
	if !opts.ForceRefresh {
		if snap, ok := e.snapshots.Get(key); ok {
			e.countCacheLookup("snapshot", "hit")
			return snap, nil
		}
		e.countCacheLookup("snapshot", "miss")
	}
	start := e.now()

	info, err := e.client.GetMintInfo(ctx, mint)
	if err != nil {
		e.countBuild("snapshot", "error")
		return nil, fmt.Errorf("mint info for %s: %w", mint, err)
	}

	accounts, err := e.client.GetTokenHolders(ctx, mint, info.ProgramID)
	if err != nil {
		e.countBuild("snapshot", "error")
		return nil, fmt.Errorf("token holders for %s: %w", mint, err)
	}

	nodes := holders.Aggregate(accounts, info.Decimals, info.SupplyRaw, opts.TopN)

	edgeWallets := make([]string, 0, opts.EdgeWallets)
	for _, node := range nodes {
		if len(edgeWallets) == opts.EdgeWallets {
			break
		}
		edgeWallets = append(edgeWallets, node.Address)
	}

	perWallet := e.scanner.SignaturesPerAddress(ctx, edgeWallets, opts.SignatureLimit)
	merged := scan.MergeSignatures(perWallet, opts.MaxSignatures)

	ids := make([]string, len(merged))
	for i, sig := range merged {
		ids[i] = sig.Signature
	}
	txs := e.scanner.Transactions(ctx, ids)

	builder := graph.NewBuilder(mint, info.Decimals, edgeWallets)
	for _, id := range ids {
		if tx := txs[id]; tx != nil {
			builder.Add(tx)
		}
	}

	supply := decimal.Zero
	if raw, err := decimal.NewFromString(info.SupplyRaw); err == nil {
		supply = raw.Shift(int32(-info.Decimals))
	}

	snap := &domain.Snapshot{
		Mint:        mint,
		Name:        info.DisplayName,
		Decimals:    info.Decimals,
		Supply:      supply,
		Nodes:       nodes,
		Edges:       builder.Edges(),
		GeneratedAt: e.now().Unix(),
	}

	e.log.Debug("snapshot built",
		zap.String("mint", mint),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)),
		zap.Int("signatures", len(merged)))
	e.countBuild("snapshot", "ok")
	e.observeBuild("snapshot", start, len(merged), len(txs))

	e.snapshots.Put(key, snap)
	return snap, nil
}

// BuildBoard produces the ranked high-volume wallet board from recent
// activity on the configured source programs.
func (e *Engine) BuildBoard(ctx context.Context, mint string, opts BoardOptions) (*domain.Board, error) {
	if err := solana.ValidateAddress(mint); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, mint)
	}
	opts = opts.withDefaults()

	key := opts.CacheKey(mint)
	if !opts.ForceRefresh {
		if board, ok := e.boards.Get(key); ok {
			e.countCacheLookup("board", "hit")
			return board, nil
		}
		e.countCacheLookup("board", "miss")
	}
	start := e.now()

	programs := make([]string, 0, len(e.sources))
	tagByProgram := make(map[string]domain.Source, len(e.sources))
	for tag, program := range e.sources {
		programs = append(programs, program)
		tagByProgram[program] = tag
	}
	sort.Strings(programs)

	perProgram := e.scanner.SignaturesPerAddress(ctx, programs, opts.SignatureLimit)

	// A transaction carries every source tag whose program listed it.
	tagsBySig := make(map[string][]domain.Source)
	for program, sigs := range perProgram {
		tag := tagByProgram[program]
		for _, sig := range sigs {
			tagsBySig[sig.Signature] = append(tagsBySig[sig.Signature], tag)
		}
	}
	for _, tags := range tagsBySig {
		sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	}

	merged := scan.MergeSignatures(perProgram, opts.MaxSignatures)
	ids := make([]string, len(merged))
	for i, sig := range merged {
		ids[i] = sig.Signature
	}
	txs := e.scanner.Transactions(ctx, ids)

	// Off-curve owners are program-derived addresses: pool vaults and
	// authorities whose deltas mirror every trade. Only curve keys, i.e.
	// wallets someone can actually sign for, rank on the board.
	acc := trades.NewAccumulator(trades.WithWalletFilter(solana.IsOnCurve))
	acc.CountSignatures(len(merged))
	for _, id := range ids {
		if tx := txs[id]; tx != nil {
			acc.Observe(tx, tagsBySig[id])
		}
	}

	board := acc.Finalize(mint, opts.MinTotal, opts.Limit, e.now().Unix())

	e.log.Debug("board built",
		zap.String("mint", mint),
		zap.Int("entries", len(board.Entries)),
		zap.Int("scannedSignatures", board.ScannedSigs),
		zap.Int("scannedTransactions", board.ScannedTxs))
	e.countBuild("board", "ok")
	e.observeBuild("board", start, len(merged), len(txs))

	e.boards.Put(key, board)
	return board, nil
}

func (e *Engine) countCacheLookup(pipeline, outcome string) {
	if e.metrics != nil {
		e.metrics.CacheLookups.WithLabelValues(pipeline, outcome).Inc()
	}
}

func (e *Engine) countBuild(pipeline, status string) {
	if e.metrics == nil {
		return
	}
	switch pipeline {
	case "snapshot":
		e.metrics.SnapshotsBuilt.WithLabelValues(status).Inc()
	case "board":
		e.metrics.BoardsBuilt.WithLabelValues(status).Inc()
	}
}

func (e *Engine) observeBuild(pipeline string, start time.Time, signatures, transactions int) {
	if e.metrics == nil {
		return
	}
	e.metrics.BuildDuration.WithLabelValues(pipeline).Observe(e.now().Sub(start).Seconds())
	e.metrics.SignaturesScanned.Add(float64(signatures))
	e.metrics.TransactionsParsed.Add(float64(transactions))
}
