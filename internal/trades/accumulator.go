package trades

import (
	"sort"

	"github.com/shopspring/decimal"

	"solana-token-atlas/internal/domain"
	"solana-token-atlas/internal/solana"
)

// Accumulator collects classified trade signals per (source, wallet) across
// a scan batch. Derived totals are computed at Finalize, never stored.
type Accumulator struct {
	entries    map[entryKey]*entryState
	keepWallet func(string) bool

	scannedSigs int
	scannedTxs  int
}

// AccumulatorOption configures an Accumulator.
type AccumulatorOption func(*Accumulator)

// WithWalletFilter drops signals whose owner fails the predicate. Used to
// keep program-derived addresses (pool vaults and authorities, whose deltas
// mirror every trade) off the wallet board.
func WithWalletFilter(keep func(string) bool) AccumulatorOption {
	return func(a *Accumulator) {
		a.keepWallet = keep
	}
}

type entryKey struct {
	source domain.Source
	wallet string
}

type entryState struct {
	buy          decimal.Decimal
	sell         decimal.Decimal
	buySigs      map[string]bool
	sellSigs     map[string]bool
	assets       map[string]bool
	lastActivity int64
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator(opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{entries: make(map[entryKey]*entryState)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CountSignatures records how many distinct signatures the scan covered.
func (a *Accumulator) CountSignatures(n int) {
	a.scannedSigs += n
}

// Observe classifies one transaction and attributes its signals to every
// source tag the transaction carries. Transactions with no signals still
// count toward the parsed-transaction counter.
func (a *Accumulator) Observe(tx *solana.ParsedTransaction, sources []domain.Source) {
	if tx == nil || len(sources) == 0 {
		return
	}
	a.scannedTxs++

	for _, sig := range ClassifySignals(tx) {
		if a.keepWallet != nil && !a.keepWallet(sig.Owner) {
			continue
		}
		for _, src := range sources {
			a.record(src, sig)
		}
	}
}

func (a *Accumulator) record(source domain.Source, sig domain.TradeSignal) {
	key := entryKey{source: source, wallet: sig.Owner}
	st, ok := a.entries[key]
	if !ok {
		st = &entryState{
			buySigs:  make(map[string]bool),
			sellSigs: make(map[string]bool),
			assets:   make(map[string]bool),
		}
		a.entries[key] = st
	}

	switch sig.Side {
	case domain.TradeSideBuy:
		st.buy = st.buy.Add(sig.QuoteVolume)
		st.buySigs[sig.Signature] = true
	case domain.TradeSideSell:
		st.sell = st.sell.Add(sig.QuoteVolume)
		st.sellSigs[sig.Signature] = true
	}
	st.assets[sig.Asset] = true
	if sig.BlockTime > st.lastActivity {
		st.lastActivity = sig.BlockTime
	}
}

// Finalize computes derived volumes, filters entries below minTotal, ranks
// by total volume descending (ties by most recent activity, unknown
// activity last) and truncates to limit. limit <= 0 means no truncation.
func (a *Accumulator) Finalize(mint string, minTotal decimal.Decimal, limit int, now int64) *domain.Board {
	entries := make([]domain.BoardEntry, 0, len(a.entries))
	for key, st := range a.entries {
		total := st.buy.Add(st.sell)
		if total.LessThan(minTotal) {
			continue
		}
		entries = append(entries, domain.BoardEntry{
			Source:       key.source,
			Wallet:       key.wallet,
			BuyVolume:    st.buy,
			SellVolume:   st.sell,
			NetVolume:    st.buy.Sub(st.sell),
			TotalVolume:  total,
			BuyTxCount:   len(st.buySigs),
			SellTxCount:  len(st.sellSigs),
			AssetCount:   len(st.assets),
			LastActivity: st.lastActivity,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].TotalVolume.Equal(entries[j].TotalVolume) {
			return entries[i].TotalVolume.GreaterThan(entries[j].TotalVolume)
		}
		if entries[i].LastActivity != entries[j].LastActivity {
			return entries[i].LastActivity > entries[j].LastActivity
		}
		// Deterministic order across map iteration.
		if entries[i].Source != entries[j].Source {
			return entries[i].Source < entries[j].Source
		}
		return entries[i].Wallet < entries[j].Wallet
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return &domain.Board{
		Mint:        mint,
		Entries:     entries,
		ScannedSigs: a.scannedSigs,
		ScannedTxs:  a.scannedTxs,
		MinTotal:    minTotal,
		GeneratedAt: now,
	}
}
