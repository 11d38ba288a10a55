// Package scan fans signature and transaction fetches out across a bounded
// worker pool. Sub-fetches are best-effort: a failed address or signature
// contributes nothing and is logged, it never aborts its siblings.
package scan

import (
	"context"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"solana-token-atlas/internal/solana"
)

const (
	defaultSignatureWorkers = 8
	defaultChunkSize        = 25
)

// Scanner runs fan-out fetches against the ledger access port.
type Scanner struct {
	client solana.Client
	log    *zap.Logger

	sigPool   *ants.Pool
	txPool    *ants.Pool
	chunkSize int
}

// Option configures a Scanner.
type Option func(*scannerConfig)

type scannerConfig struct {
	signatureWorkers int
	chunkSize        int
}

// WithSignatureWorkers sets the per-address signature fetch concurrency.
func WithSignatureWorkers(n int) Option {
	return func(c *scannerConfig) {
		if n > 0 {
			c.signatureWorkers = n
		}
	}
}

// WithChunkSize sets how many transactions are fetched per chunk. Chunks
// run sequentially; fetches within a chunk run concurrently.
func WithChunkSize(n int) Option {
	return func(c *scannerConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// NewScanner creates a Scanner with its worker pools.
func NewScanner(client solana.Client, log *zap.Logger, opts ...Option) (*Scanner, error) {
	cfg := scannerConfig{
		signatureWorkers: defaultSignatureWorkers,
		chunkSize:        defaultChunkSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	sigPool, err := ants.NewPool(cfg.signatureWorkers)
	if err != nil {
		return nil, err
	}
	txPool, err := ants.NewPool(cfg.chunkSize)
	if err != nil {
		sigPool.Release()
		return nil, err
	}

	return &Scanner{
		client:    client,
		log:       log,
		sigPool:   sigPool,
		txPool:    txPool,
		chunkSize: cfg.chunkSize,
	}, nil
}

// Close releases the worker pools.
func (s *Scanner) Close() {
	s.sigPool.Release()
	s.txPool.Release()
}

// SignaturesPerAddress fetches recent signatures for every address
// concurrently. Failed addresses map to nil. Failed transactions carried in
// a signature list (non-nil Err) are dropped before return.
func (s *Scanner) SignaturesPerAddress(ctx context.Context, addresses []string, limit int) map[string][]solana.SignatureInfo {
	results := make(map[string][]solana.SignatureInfo, len(addresses))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, addr := range addresses {
		address := addr
		wg.Add(1)
		task := func() {
			defer wg.Done()
			sigs, err := s.client.GetSignatures(ctx, address, limit)
			if err != nil {
				s.log.Warn("signature fetch failed",
					zap.String("address", address),
					zap.Error(err))
				return
			}
			kept := make([]solana.SignatureInfo, 0, len(sigs))
			for _, sig := range sigs {
				if sig.Err == nil {
					kept = append(kept, sig)
				}
			}
			mu.Lock()
			results[address] = kept
			mu.Unlock()
		}
		if err := s.sigPool.Submit(task); err != nil {
			// Pool rejected the task; run it inline rather than lose it.
			task()
		}
	}
	wg.Wait()

	return results
}

// MergeSignatures flattens per-address signature lists into one deduplicated
// list, most recent first, capped at max. Signatures without a block time
// sort last; ties break by signature id for determinism.
func MergeSignatures(perAddress map[string][]solana.SignatureInfo, max int) []solana.SignatureInfo {
	seen := make(map[string]bool)
	var merged []solana.SignatureInfo

	// Iterate addresses in sorted order so dedupe keeps a stable winner.
	addresses := make([]string, 0, len(perAddress))
	for addr := range perAddress {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	for _, addr := range addresses {
		for _, sig := range perAddress[addr] {
			if sig.Signature == "" || seen[sig.Signature] {
				continue
			}
			seen[sig.Signature] = true
			merged = append(merged, sig)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		bi, bj := merged[i].BlockTime, merged[j].BlockTime
		switch {
		case bi != nil && bj != nil && *bi != *bj:
			return *bi > *bj
		case bi != nil && bj == nil:
			return true
		case bi == nil && bj != nil:
			return false
		}
		return merged[i].Signature < merged[j].Signature
	})

	if max > 0 && len(merged) > max {
		merged = merged[:max]
	}
	return merged
}

// Transactions fetches parsed transactions for the given signatures in
// sequential chunks, concurrently within each chunk. The result is keyed by
// signature; unretrievable or failed fetches are simply absent.
func (s *Scanner) Transactions(ctx context.Context, signatures []string) map[string]*solana.ParsedTransaction {
	results := make(map[string]*solana.ParsedTransaction, len(signatures))
	var mu sync.Mutex

	for start := 0; start < len(signatures); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(signatures) {
			end = len(signatures)
		}

		var wg sync.WaitGroup
		for _, sig := range signatures[start:end] {
			signature := sig
			wg.Add(1)
			task := func() {
				defer wg.Done()
				tx, err := s.client.GetParsedTransaction(ctx, signature)
				if err != nil {
					s.log.Warn("transaction fetch failed",
						zap.String("signature", signature),
						zap.Error(err))
					return
				}
				if tx == nil {
					return
				}
				mu.Lock()
				results[signature] = tx
				mu.Unlock()
			}
			if err := s.txPool.Submit(task); err != nil {
				task()
			}
		}
		wg.Wait()
	}

	return results
}
