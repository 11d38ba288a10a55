package trades

import (
	"github.com/shopspring/decimal"

	"solana-token-atlas/internal/domain"
	"solana-token-atlas/internal/solana"
)

// ClassifySignals infers buy/sell trade signals from one transaction's
// balance deltas.
//
// For each owner, the quote delta is the owner's wrapped-SOL delta when one
// exists, otherwise the owner's native SOL delta. Every other asset delta of
// that owner classifies as:
//
//	buy  — token delta > 0 and quote delta < 0
//	sell — token delta < 0 and quote delta > 0
//
// Anything else (airdrops, fee-only movement, same-sign deltas) is
// discarded as ambiguous. When several token deltas of one owner qualify in
// the same transaction, the owner's absolute quote delta is attributed
// proportionally by each candidate's share of the total absolute token
// delta.
func ClassifySignals(tx *solana.ParsedTransaction) []domain.TradeSignal {
	deltas := OwnerDeltas(tx)
	if len(deltas) == 0 {
		return nil
	}
	native := NativeDeltas(tx)

	// Group asset deltas per owner, separating the quote asset.
	type ownerState struct {
		quote      decimal.Decimal
		hasWrapped bool
		tokens     []domain.OwnerAssetDelta
	}
	owners := make(map[string]*ownerState)
	order := make([]string, 0)

	get := func(owner string) *ownerState {
		st, ok := owners[owner]
		if !ok {
			st = &ownerState{}
			owners[owner] = st
			order = append(order, owner)
		}
		return st
	}

	for _, d := range deltas {
		st := get(d.Owner)
		if d.Asset == solana.WrappedSOLMint {
			st.quote = st.quote.Add(d.Delta)
			st.hasWrapped = true
		} else {
			st.tokens = append(st.tokens, d)
		}
	}

	var signals []domain.TradeSignal
	for _, owner := range order {
		st := owners[owner]
		if !st.hasWrapped {
			if nd, ok := native[owner]; ok {
				st.quote = nd
			}
		}
		if st.quote.IsZero() || len(st.tokens) == 0 {
			continue
		}

		// Qualifying candidates must oppose the quote direction.
		var candidates []domain.OwnerAssetDelta
		for _, d := range st.tokens {
			if d.Delta.Sign() > 0 && st.quote.Sign() < 0 {
				candidates = append(candidates, d)
			} else if d.Delta.Sign() < 0 && st.quote.Sign() > 0 {
				candidates = append(candidates, d)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		side := domain.TradeSideBuy
		if st.quote.Sign() > 0 {
			side = domain.TradeSideSell
		}

		total := decimal.Zero
		for _, d := range candidates {
			total = total.Add(d.Delta.Abs())
		}
		quoteAbs := st.quote.Abs()

		for _, d := range candidates {
			var share decimal.Decimal
			if total.Sign() > 0 {
				share = quoteAbs.Mul(d.Delta.Abs()).Div(total)
			} else {
				// Unreachable given the sign filter; split evenly if it
				// ever happens.
				share = quoteAbs.Div(decimal.NewFromInt(int64(len(candidates))))
			}
			signals = append(signals, domain.TradeSignal{
				Owner:       owner,
				Asset:       d.Asset,
				Side:        side,
				QuoteVolume: share,
				Signature:   tx.Signature,
				BlockTime:   tx.BlockTime,
			})
		}
	}

	return signals
}
