package valuation

import (
	"context"
	"fmt"

	"github.com/mkorzen/poly-pnl/internal/identity"
)

// Key identifies one outcome of one market.
type Key struct {
	MarketID identity.CanonicalID
	Outcome  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.MarketID, k.Outcome)
}

// NeutralMark is the fallback mark used only when a source has no trade
// data at all for a market.
const NeutralMark = 0.5

// MissingValuationError reports that no mark price exists for a key.
// Callers report unrealized PnL as unknown rather than fabricating a number.
type MissingValuationError struct {
	Key Key
}

func (e *MissingValuationError) Error() string {
	return fmt.Sprintf("no mark price for %s", e.Key)
}

// Resolver supplies settlement prices for resolved markets.
// The boolean is false while the market outcome is undetermined.
type Resolver interface {
	SettlementPrice(ctx context.Context, key Key) (float64, bool, error)

	// Settlements is the batch form; unresolved keys are absent from the map.
	Settlements(ctx context.Context, keys []Key) (map[Key]float64, error)
}

// MarkSource supplies the current best-estimate trade price for open markets.
type MarkSource interface {
	// MarkPrice returns the mark for one key, or *MissingValuationError.
	MarkPrice(ctx context.Context, key Key) (float64, error)

	// MarkPrices is the batch form; unknown keys are absent from the map.
	MarkPrices(ctx context.Context, keys []Key) (map[Key]float64, error)
}
