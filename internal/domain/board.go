package domain

import "github.com/shopspring/decimal"

// BoardEntry is one (source, wallet) row on the high-volume wallet board.
// NetVolume and TotalVolume are derived on emission, never accumulated
// independently, so they cannot drift from the buy/sell sums.
type BoardEntry struct {
	Source       Source          `json:"source"`
	Wallet       string          `json:"wallet"`
	BuyVolume    decimal.Decimal `json:"buyVolume"`
	SellVolume   decimal.Decimal `json:"sellVolume"`
	NetVolume    decimal.Decimal `json:"netVolume"`   // buy - sell
	TotalVolume  decimal.Decimal `json:"totalVolume"` // buy + sell
	BuyTxCount   int             `json:"buyTxCount"`
	SellTxCount  int             `json:"sellTxCount"`
	AssetCount   int             `json:"assetCount"` // distinct non-quote assets traded
	LastActivity int64           `json:"lastActivity"` // Unix seconds, 0 when unknown
}

// Board is the ranked high-volume wallet view for one mint's venues.
type Board struct {
	Mint        string          `json:"mint"`
	Entries     []BoardEntry    `json:"entries"`
	ScannedSigs int             `json:"scannedSignatures"`
	ScannedTxs  int             `json:"scannedTransactions"`
	MinTotal    decimal.Decimal `json:"minTotal"` // effective minimum total-volume threshold
	GeneratedAt int64           `json:"generatedAt"`
}
