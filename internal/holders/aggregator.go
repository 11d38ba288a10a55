// Package holders reduces raw token-account balances into ranked per-owner
// holder nodes.
package holders

import (
	"sort"

	"github.com/shopspring/decimal"

	"solana-token-atlas/internal/domain"
	"solana-token-atlas/internal/solana"
)

// Aggregate sums raw balances per owner, converts to UI units, ranks
// descending by balance and truncates to topN. A single owner holding
// several token accounts appears exactly once. Ties keep first-seen input
// order, so output is deterministic for a given input.
//
// Raw amounts pass through decimal arithmetic; the integer part never goes
// through a float.
func Aggregate(accounts []solana.TokenHolder, decimals int, supplyRaw string, topN int) []domain.HolderNode {
	sums := make(map[string]decimal.Decimal)
	order := make([]string, 0, len(accounts))

	for _, acc := range accounts {
		raw, err := decimal.NewFromString(acc.AmountRaw)
		if err != nil || raw.Sign() <= 0 {
			continue
		}
		if prev, ok := sums[acc.Owner]; ok {
			sums[acc.Owner] = prev.Add(raw)
		} else {
			sums[acc.Owner] = raw
			order = append(order, acc.Owner)
		}
	}

	supply := decimal.Zero
	if s, err := decimal.NewFromString(supplyRaw); err == nil {
		supply = s.Shift(int32(-decimals))
	}

	nodes := make([]domain.HolderNode, 0, len(order))
	for _, owner := range order {
		balance := sums[owner].Shift(int32(-decimals))
		node := domain.HolderNode{
			Address: owner,
			Balance: balance,
		}
		if supply.Sign() > 0 {
			pct, _ := balance.Div(supply).Mul(decimal.NewFromInt(100)).Float64()
			node.PctSupply = pct
		}
		nodes = append(nodes, node)
	}

	// Stable sort keeps insertion order on equal balances.
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Balance.GreaterThan(nodes[j].Balance)
	})

	if topN > 0 && len(nodes) > topN {
		nodes = nodes[:topN]
	}

	return nodes
}
