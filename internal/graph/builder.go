// Package graph extracts a directed, weighted transfer graph for one mint,
// confined to a selected wallet set.
package graph

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"solana-token-atlas/internal/domain"
	"solana-token-atlas/internal/solana"
)

// Builder accumulates transfer edges across a scan window. A Builder is
// single-use: build one, feed it the window's transactions, take Edges.
type Builder struct {
	mint     string
	decimals int
	included map[string]bool
	edges    map[edgeKey]*domain.TransferEdge
}

type edgeKey struct {
	from, to string
}

// NewBuilder creates a builder for the given mint, restricted to the
// included owner set.
func NewBuilder(mint string, decimals int, included []string) *Builder {
	set := make(map[string]bool, len(included))
	for _, addr := range included {
		set[addr] = true
	}
	return &Builder{
		mint:     mint,
		decimals: decimals,
		included: set,
		edges:    make(map[edgeKey]*domain.TransferEdge),
	}
}

// tokenAccount is the resolved identity of one transaction-local token
// account: who owns it and which mint it holds.
type tokenAccount struct {
	owner string
	mint  string
}

// Add extracts this transaction's transfer contributions. Both top-level
// and inner instructions whose parsed type starts with "transfer" are
// considered; contributions survive only when the mint matches, both
// resolved owners are known and included, and the owners differ.
func (b *Builder) Add(tx *solana.ParsedTransaction) {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return
	}

	accounts := b.resolveTokenAccounts(tx)
	if len(accounts) == 0 {
		return
	}

	for _, in := range tx.AllInstructions() {
		if in.Parsed == nil || !strings.HasPrefix(in.Parsed.Type, "transfer") {
			continue
		}
		info := in.Parsed.Info

		src, srcOK := accounts[info.Source]
		dst, dstOK := accounts[info.Destination]
		if !srcOK || !dstOK {
			continue
		}
		if src.owner == dst.owner {
			// Self-transfer between the same owner's accounts.
			continue
		}

		// transferChecked names the mint; plain transfer is resolved
		// through the account map.
		mint := info.Mint
		if mint == "" {
			mint = src.mint
		}
		if mint != b.mint {
			continue
		}

		if !b.included[src.owner] || !b.included[dst.owner] {
			continue
		}

		amount := transferAmount(info)
		if amount == "" {
			continue
		}
		raw, err := decimal.NewFromString(amount)
		if err != nil || raw.Sign() <= 0 {
			continue
		}
		ui := raw.Shift(int32(-b.decimals))

		key := edgeKey{from: src.owner, to: dst.owner}
		if edge, ok := b.edges[key]; ok {
			edge.AmountSum = edge.AmountSum.Add(ui)
			edge.TxCount++
		} else {
			b.edges[key] = &domain.TransferEdge{
				From:      src.owner,
				To:        dst.owner,
				AmountSum: ui,
				TxCount:   1,
			}
		}
	}
}

// resolveTokenAccounts maps token-account pubkeys to (owner, mint) using
// the transaction's pre/post token-balance records and the ordered account
// keys. Post records win over pre for the same account.
func (b *Builder) resolveTokenAccounts(tx *solana.ParsedTransaction) map[string]tokenAccount {
	keys := tx.Message.AccountKeys
	out := make(map[string]tokenAccount)

	resolve := func(balances []solana.TokenBalance) {
		for _, bal := range balances {
			if bal.AccountIndex < 0 || bal.AccountIndex >= len(keys) {
				continue
			}
			if bal.Owner == "" {
				continue
			}
			pubkey := keys[bal.AccountIndex].Pubkey
			out[pubkey] = tokenAccount{owner: bal.Owner, mint: bal.Mint}
		}
	}

	resolve(tx.Meta.PreTokenBalances)
	resolve(tx.Meta.PostTokenBalances)
	return out
}

func transferAmount(info solana.InstructionInfo) string {
	if info.TokenAmount != nil {
		return info.TokenAmount.Amount
	}
	return info.Amount
}

// Edges returns the aggregated edges sorted by amount descending, ties
// broken by transfer count descending.
func (b *Builder) Edges() []domain.TransferEdge {
	out := make([]domain.TransferEdge, 0, len(b.edges))
	for _, edge := range b.edges {
		out = append(out, *edge)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].AmountSum.Equal(out[j].AmountSum) {
			return out[i].AmountSum.GreaterThan(out[j].AmountSum)
		}
		if out[i].TxCount != out[j].TxCount {
			return out[i].TxCount > out[j].TxCount
		}
		// Final key only for determinism across map iteration order.
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})

	return out
}
