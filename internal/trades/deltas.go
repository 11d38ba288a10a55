// Package trades infers buy/sell signals from per-owner balance deltas and
// accumulates them into a ranked high-volume wallet board.
//
// The classification here is a heuristic proxy for trading: no
// program-specific event logs are decoded, direction is inferred purely from
// co-occurring asset deltas within one transaction. Decoding venue events
// for exact fills is the extension point for future accuracy work.
package trades

import (
	"github.com/shopspring/decimal"

	"solana-token-atlas/internal/domain"
	"solana-token-atlas/internal/solana"
)

// OwnerDeltas computes signed per-(owner, mint) balance changes from the
// transaction's pre/post token-balance records. Zero deltas are dropped.
func OwnerDeltas(tx *solana.ParsedTransaction) []domain.OwnerAssetDelta {
	if tx == nil || tx.Meta == nil {
		return nil
	}

	type assetKey struct {
		owner string
		mint  string
	}
	type state struct {
		pre      decimal.Decimal
		post     decimal.Decimal
		decimals int
	}

	states := make(map[assetKey]*state)
	order := make([]assetKey, 0)

	touch := func(bal solana.TokenBalance) *state {
		key := assetKey{owner: bal.Owner, mint: bal.Mint}
		st, ok := states[key]
		if !ok {
			st = &state{decimals: bal.UITokenAmount.Decimals}
			states[key] = st
			order = append(order, key)
		}
		return st
	}

	for _, bal := range tx.Meta.PreTokenBalances {
		if bal.Owner == "" {
			continue
		}
		if amt, err := decimal.NewFromString(bal.UITokenAmount.Amount); err == nil {
			st := touch(bal)
			st.pre = st.pre.Add(amt)
		}
	}
	for _, bal := range tx.Meta.PostTokenBalances {
		if bal.Owner == "" {
			continue
		}
		if amt, err := decimal.NewFromString(bal.UITokenAmount.Amount); err == nil {
			st := touch(bal)
			st.post = st.post.Add(amt)
		}
	}

	var out []domain.OwnerAssetDelta
	for _, key := range order {
		st := states[key]
		delta := st.post.Sub(st.pre)
		if delta.IsZero() {
			continue
		}
		out = append(out, domain.OwnerAssetDelta{
			Owner:    key.owner,
			Asset:    key.mint,
			Delta:    delta.Shift(int32(-st.decimals)),
			Decimals: st.decimals,
		})
	}
	return out
}

// NativeDeltas computes per-address native balance changes in SOL UI units,
// keyed by the account's own pubkey. For a wallet's system account the
// pubkey is the owner address, which is what the quote-fallback path needs.
func NativeDeltas(tx *solana.ParsedTransaction) map[string]decimal.Decimal {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return nil
	}

	keys := tx.Message.AccountKeys
	pre := tx.Meta.PreBalances
	post := tx.Meta.PostBalances

	out := make(map[string]decimal.Decimal)
	for i := range keys {
		if i >= len(pre) || i >= len(post) {
			break
		}
		delta := decimal.NewFromUint64(post[i]).Sub(decimal.NewFromUint64(pre[i]))
		if delta.IsZero() {
			continue
		}
		out[keys[i].Pubkey] = delta.Shift(-9) // lamports to SOL
	}
	return out
}
