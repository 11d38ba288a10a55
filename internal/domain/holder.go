package domain

import "github.com/shopspring/decimal"

// HolderNode represents one distinct token owner in a holder snapshot.
// Balance is in UI units (raw amount scaled by mint decimals).
type HolderNode struct {
	Address   string          `json:"address"`
	Balance   decimal.Decimal `json:"balance"`
	PctSupply float64         `json:"pctSupply"` // 0-100, 0 when supply is unknown
}

// TransferEdge is a directed, aggregated transfer between two owners.
// Keyed by ordered (From, To); direction matters.
type TransferEdge struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	AmountSum decimal.Decimal `json:"amountSum"`
	TxCount   int             `json:"txCount"`
}

// Snapshot is the holder-concentration view for one mint: ranked holder
// nodes plus the transfer graph confined to the top holders.
type Snapshot struct {
	Mint        string          `json:"mint"`
	Name        string          `json:"name,omitempty"`
	Decimals    int             `json:"decimals"`
	Supply      decimal.Decimal `json:"supply"`
	Nodes       []HolderNode    `json:"nodes"`
	Edges       []TransferEdge  `json:"edges"`
	GeneratedAt int64           `json:"generatedAt"` // Unix seconds
}
