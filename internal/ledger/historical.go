package ledger

import (
	"math"

	"github.com/mkorzen/poly-pnl/internal/model"
)

// Historical engine variants, kept runnable so the reconciliation harness
// can compare them against the canonical book. Both are known-wrong for
// non-trivial wallets; that is the point of keeping them.

// fifoLot is one open buy lot in the FIFO book.
type fifoLot struct {
	amount float64
	price  float64
}

// fifoBook reproduces the role-restricted FIFO engine. It only saw trade
// fills, so split/merge/redemption inventory never existed for it, and
// sells beyond its lots were silently dropped.
type fifoBook struct {
	lots  map[posKey][]fifoLot
	book  map[posKey]*Position
	order []posKey
}

func newFIFOBook() *fifoBook {
	return &fifoBook{
		lots: make(map[posKey][]fifoLot),
		book: make(map[posKey]*Position),
	}
}

func (b *fifoBook) position(ev normEvent) *Position {
	key := posKey{marketID: ev.ID, outcome: ev.Outcome}
	if p, ok := b.book[key]; ok {
		return p
	}
	p := &Position{Wallet: ev.Wallet, MarketID: ev.ID, Outcome: ev.Outcome}
	b.book[key] = p
	b.order = append(b.order, key)
	return p
}

func (b *fifoBook) apply(ev normEvent, _ *Diagnostics) {
	if ev.Kind.Lifecycle() {
		return // invisible to this engine
	}
	price, ok := impliedPrice(ev)
	if !ok {
		return
	}
	key := posKey{marketID: ev.ID, outcome: ev.Outcome}
	pos := b.position(ev)
	amount := math.Abs(ev.TokenAmount)

	switch ev.Kind {
	case model.KindTradeBuy:
		b.lots[key] = append(b.lots[key], fifoLot{amount: amount, price: price})
		pos.Amount += amount
		pos.TotalBought += amount

	case model.KindTradeSell:
		remaining := amount
		lots := b.lots[key]
		for len(lots) > 0 && remaining > 0 {
			lot := &lots[0]
			take := math.Min(lot.amount, remaining)
			pos.RealizedPnl += take * (price - lot.price)
			lot.amount -= take
			remaining -= take
			pos.Amount -= take
			if lot.amount <= amountEpsilon {
				lots = lots[1:]
			}
		}
		b.lots[key] = lots
		// Excess beyond tracked lots realized nothing and was dropped.
	}
}

func (b *fifoBook) positions() []*Position {
	out := make([]*Position, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.book[key])
	}
	return out
}

// cashFlowBook reproduces the cash aggregation engine: realized PnL as the
// sum of signed trade cash deltas, no lifecycle events, no cost basis.
// Net token amounts can go negative here; that was one of its defects.
type cashFlowBook struct {
	book  map[posKey]*Position
	order []posKey
}

func newCashFlowBook() *cashFlowBook {
	return &cashFlowBook{book: make(map[posKey]*Position)}
}

func (b *cashFlowBook) apply(ev normEvent, _ *Diagnostics) {
	if ev.Kind != model.KindTradeBuy && ev.Kind != model.KindTradeSell {
		return
	}
	key := posKey{marketID: ev.ID, outcome: ev.Outcome}
	pos, ok := b.book[key]
	if !ok {
		pos = &Position{Wallet: ev.Wallet, MarketID: ev.ID, Outcome: ev.Outcome}
		b.book[key] = pos
		b.order = append(b.order, key)
	}

	// Buys are cash out (negative), sells cash in (positive).
	pos.RealizedPnl += ev.CashAmount
	if ev.Kind == model.KindTradeBuy {
		pos.Amount += math.Abs(ev.TokenAmount)
		pos.TotalBought += math.Abs(ev.TokenAmount)
	} else {
		pos.Amount -= math.Abs(ev.TokenAmount)
	}
}

func (b *cashFlowBook) positions() []*Position {
	out := make([]*Position, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.book[key])
	}
	return out
}
