package ledger

import (
	"math"

	"github.com/mkorzen/poly-pnl/internal/identity"
	"github.com/mkorzen/poly-pnl/internal/model"
	"github.com/mkorzen/poly-pnl/internal/valuation"
)

// posKey indexes the position map within one wallet.
type posKey struct {
	marketID identity.CanonicalID
	outcome  int
}

// weightedBook is the canonical cost-basis book: weighted-average buys,
// clamped sells, lifecycle events decomposed into even-priced legs.
type weightedBook struct {
	outcomes int
	settle   map[valuation.Key]float64

	book  map[posKey]*Position
	order []posKey // insertion order for deterministic snapshots
}

func newWeightedBook(outcomes int, settle map[valuation.Key]float64) *weightedBook {
	return &weightedBook{
		outcomes: outcomes,
		settle:   settle,
		book:     make(map[posKey]*Position),
	}
}

func (b *weightedBook) position(wallet string, id identity.CanonicalID, outcome int) *Position {
	key := posKey{marketID: id, outcome: outcome}
	if p, ok := b.book[key]; ok {
		return p
	}
	p := &Position{Wallet: wallet, MarketID: id, Outcome: outcome}
	b.book[key] = p
	b.order = append(b.order, key)
	return p
}

func (b *weightedBook) apply(ev normEvent, diag *Diagnostics) {
	switch ev.Kind {
	case model.KindTradeBuy:
		price, ok := impliedPrice(ev)
		if !ok {
			return
		}
		b.position(ev.Wallet, ev.ID, ev.Outcome).Buy(math.Abs(ev.TokenAmount), price)

	case model.KindTradeSell:
		price, ok := impliedPrice(ev)
		if !ok {
			return
		}
		b.position(ev.Wallet, ev.ID, ev.Outcome).Sell(math.Abs(ev.TokenAmount), price)

	case model.KindSplit:
		// One unit of collateral becomes one token of every outcome,
		// each leg priced at the even collateral share.
		amount := math.Abs(ev.TokenAmount)
		legPrice := 1 / float64(b.outcomes)
		for i := 0; i < b.outcomes; i++ {
			b.position(ev.Wallet, ev.ID, i).Buy(amount, legPrice)
		}

	case model.KindMerge:
		amount := math.Abs(ev.TokenAmount)
		legPrice := 1 / float64(b.outcomes)
		for i := 0; i < b.outcomes; i++ {
			b.position(ev.Wallet, ev.ID, i).Sell(amount, legPrice)
		}

	case model.KindRedemption:
		pos := b.position(ev.Wallet, ev.ID, ev.Outcome)
		price, ok := b.settle[valuation.Key{MarketID: ev.ID, Outcome: ev.Outcome}]
		if !ok {
			// No resolution record: fall back to the price implied by the
			// redemption's own amounts, never a fabricated settlement.
			if price, ok = impliedPrice(ev); !ok {
				diag.UnpricedRedemptions++
				return
			}
		}
		pos.Sell(pos.Amount, price)
	}
}

func (b *weightedBook) positions() []*Position {
	out := make([]*Position, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.book[key])
	}
	return out
}
