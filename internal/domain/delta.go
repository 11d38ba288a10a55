package domain

import "github.com/shopspring/decimal"

// OwnerAssetDelta is one owner's signed balance change for one asset within
// a single transaction, derived from pre/post balance snapshots. Zero-delta
// entries are dropped at construction.
type OwnerAssetDelta struct {
	Owner    string
	Asset    string // mint address, or the wrapped-native mint for quote deltas
	Delta    decimal.Decimal
	Decimals int
}

// TradeSide is the inferred direction of a classified asset delta.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeSignal classifies one owner's non-quote asset delta in one
// transaction, with the quote-volume share attributed to it. It is a
// heuristic inference from co-occurring deltas, not a decoded program event.
type TradeSignal struct {
	Owner       string
	Asset       string
	Side        TradeSide
	QuoteVolume decimal.Decimal // absolute quote units attributed to this asset
	Signature   string
	BlockTime   int64
}
