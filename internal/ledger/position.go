package ledger

import "github.com/mkorzen/poly-pnl/internal/identity"

// State is the lifecycle state of a Position.
type State int

const (
	// Empty means no tracked inventory has ever arrived.
	Empty State = iota
	// Open means the position holds tokens.
	Open
	// Closed means the amount returned to zero. A closed position reopens
	// on the next buy.
	Closed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// amountEpsilon absorbs float residue when an amount returns to zero.
const amountEpsilon = 1e-9

// Position is the mutable aggregate for one (wallet, market, outcome).
// Mutated in strict timestamp order by exactly one goroutine.
type Position struct {
	Wallet   string
	MarketID identity.CanonicalID
	Outcome  int

	Amount      float64 // Current tracked token amount, never negative
	AvgPrice    float64 // Weighted-average cost per token, in [0,1]
	RealizedPnl float64 // Cumulative realized PnL
	TotalBought float64 // Cumulative tokens ever bought

	// Sell-clamp occurrences: sells of untracked inventory.
	ClampedSells  int
	ClampedTokens float64

	state State
}

// State returns the lifecycle state.
func (p *Position) State() State {
	return p.state
}

// Buy applies a fill of amount tokens at price, folding it into the
// weighted-average cost basis. Non-positive amounts are ignored.
func (p *Position) Buy(amount, price float64) {
	if amount <= 0 {
		return
	}
	total := p.Amount + amount
	p.AvgPrice = (p.AvgPrice*p.Amount + price*amount) / total
	p.Amount = total
	p.TotalBought += amount
	p.state = Open
}

// Sell disposes of up to amount tokens at price and returns the realized
// PnL delta. The sell is clamped to tracked inventory: tokens the ledger
// never saw arrive realize nothing, they are counted as a clamp instead.
func (p *Position) Sell(amount, price float64) float64 {
	if amount <= 0 {
		return 0
	}

	adjusted := amount
	if adjusted > p.Amount {
		p.ClampedSells++
		p.ClampedTokens += adjusted - p.Amount
		adjusted = p.Amount
	}
	if adjusted == 0 {
		return 0
	}

	delta := adjusted * (price - p.AvgPrice)
	p.RealizedPnl += delta
	p.Amount -= adjusted
	if p.Amount <= amountEpsilon {
		p.Amount = 0
		p.state = Closed
	}
	return delta
}
