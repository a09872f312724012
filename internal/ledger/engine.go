package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/mkorzen/poly-pnl/internal/identity"
	"github.com/mkorzen/poly-pnl/internal/model"
	"github.com/mkorzen/poly-pnl/internal/valuation"
)

// Variant tags the transition semantics an Engine applies.
type Variant string

const (
	// VariantWeightedAverage is the canonical engine: weighted-average cost
	// basis with full lifecycle-event support and clamped sells.
	VariantWeightedAverage Variant = "weighted_average"
	// VariantRoleFIFO reproduces the historical FIFO engine that only saw
	// trade fills; lifecycle-acquired inventory was invisible to it.
	VariantRoleFIFO Variant = "role_fifo"
	// VariantCashFlow reproduces the historical cash aggregation engine:
	// realized PnL as the sum of signed trade cash, no lifecycle events.
	VariantCashFlow Variant = "cash_flow"
)

// Valid reports whether v names a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantWeightedAverage, VariantRoleFIFO, VariantCashFlow:
		return true
	}
	return false
}

// ParseVariant converts a config string to a Variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown engine variant %q", s)
	}
	return v, nil
}

// Config holds engine configuration.
type Config struct {
	// OutcomeCount is the number of outcomes per market, used to price
	// split/merge legs at the even collateral share. Defaults to binary.
	OutcomeCount int
}

func (c *Config) applyDefaults() {
	if c.OutcomeCount < 2 {
		c.OutcomeCount = 2
	}
}

// Diagnostics summarizes everything the harness needs to classify a
// mismatch as data-quality gap versus formula defect.
type Diagnostics struct {
	EventCounts         map[model.EventKind]int
	ClampedSells        int     // Sells clamped to tracked inventory
	ClampedTokens       float64 // Total tokens clamped away
	UnrecognizedIDs     int     // Events quarantined at the identity gate
	MissingMarks        int     // Open unresolved positions with no mark
	UnpricedRedemptions int     // Redemptions with no settlement or implied price
}

// PositionSnapshot is the read-only view of one position after replay.
type PositionSnapshot struct {
	Wallet   string
	MarketID identity.CanonicalID
	Outcome  int

	RealizedPnl float64
	OpenAmount  float64
	AvgPrice    float64

	// ResolvedUnrealizedValue is the settlement value of resolved but
	// unredeemed tokens. Kept separate from RealizedPnl because ground-truth
	// oracles disagree on whether it counts as realized; never pre-summed.
	ResolvedUnrealizedValue float64

	// UnrealizedPnl is mark-to-market for open unresolved inventory.
	// Only meaningful when UnrealizedKnown is true.
	UnrealizedPnl   float64
	UnrealizedKnown bool
}

// WalletResult is the engine output for one wallet.
type WalletResult struct {
	Wallet  string
	Variant Variant

	Positions []PositionSnapshot

	RealizedPnl        float64 // Sum of realized PnL across positions
	UnrealizedPnl      float64 // Sum of known unrealized PnL
	ResolvedUnrealized float64 // Sum of resolved-unredeemed value
	UnrealizedComplete bool    // False when any open position lacked a mark

	Diagnostics Diagnostics
	Quarantined []model.RawEvent // Events rejected at the identity gate
}

// TotalPnl combines the components under a chosen convention.
func (r *WalletResult) TotalPnl(includeResolved, includeUnrealized bool) float64 {
	total := r.RealizedPnl
	if includeResolved {
		total += r.ResolvedUnrealized
	}
	if includeUnrealized {
		total += r.UnrealizedPnl
	}
	return total
}

// Engine replays one wallet's event stream into position state.
// Stateless across calls: a fresh book per ProcessWallet, so one Engine is
// safely shared by many workers.
type Engine struct {
	cfg      Config
	variant  Variant
	resolver valuation.Resolver
	marks    valuation.MarkSource
	logger   *slog.Logger
}

// New creates an engine for the given variant.
func New(cfg Config, variant Variant, resolver valuation.Resolver, marks valuation.MarkSource, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		variant:  variant,
		resolver: resolver,
		marks:    marks,
		logger:   logger,
	}
}

// Variant returns the engine's transition semantics tag.
func (e *Engine) Variant() Variant {
	return e.variant
}

// normEvent is a raw event that passed the identity gate.
type normEvent struct {
	model.RawEvent
	ID identity.CanonicalID
}

// book applies normalized events and accumulates positions.
type book interface {
	apply(ev normEvent, diag *Diagnostics)
	positions() []*Position
}

// ProcessWallet replays events (raw, deduplicated) for one wallet and
// returns its positions, aggregates, and diagnostics.
//
// Events with unrecognizable market ids are quarantined, not fatal: the
// wallet still gets a result with explicit gaps. Only an infrastructure
// failure (settlement lookup) fails the wallet outright.
func (e *Engine) ProcessWallet(ctx context.Context, wallet string, events []model.RawEvent) (*WalletResult, error) {
	res := &WalletResult{
		Wallet:             wallet,
		Variant:            e.variant,
		UnrealizedComplete: true,
	}
	res.Diagnostics.EventCounts = make(map[model.EventKind]int)

	// Identity gate: nothing downstream sees a non-canonical id.
	norm := make([]normEvent, 0, len(events))
	for _, ev := range events {
		id, err := identity.Normalize(ev.RawMarketID)
		if err != nil {
			res.Diagnostics.UnrecognizedIDs++
			res.Quarantined = append(res.Quarantined, ev)
			continue
		}
		res.Diagnostics.EventCounts[ev.Kind]++
		norm = append(norm, normEvent{RawEvent: ev, ID: id})
	}

	// Strict replay order: timestamp, ties by dedupe key.
	sort.SliceStable(norm, func(i, j int) bool {
		if norm[i].Timestamp != norm[j].Timestamp {
			return norm[i].Timestamp < norm[j].Timestamp
		}
		return norm[i].SourceID < norm[j].SourceID
	})

	// One settlement lookup for every key the stream can touch.
	settlements, err := e.resolver.Settlements(ctx, touchedKeys(norm, e.cfg.OutcomeCount))
	if err != nil {
		return nil, fmt.Errorf("fetch settlements for %s: %w", wallet, err)
	}

	bk := e.newBook(settlements)
	for _, ev := range norm {
		bk.apply(ev, &res.Diagnostics)
	}

	positions := bk.positions()
	for _, p := range positions {
		res.Diagnostics.ClampedSells += p.ClampedSells
		res.Diagnostics.ClampedTokens += p.ClampedTokens
	}

	e.snapshot(ctx, positions, settlements, res)
	return res, nil
}

func (e *Engine) newBook(settlements map[valuation.Key]float64) book {
	switch e.variant {
	case VariantRoleFIFO:
		return newFIFOBook()
	case VariantCashFlow:
		return newCashFlowBook()
	default:
		return newWeightedBook(e.cfg.OutcomeCount, settlements)
	}
}

// snapshot values open inventory and fills aggregates.
func (e *Engine) snapshot(ctx context.Context, positions []*Position, settlements map[valuation.Key]float64, res *WalletResult) {
	res.Positions = make([]PositionSnapshot, 0, len(positions))

	// Open unresolved positions needing a mark, one batch round trip.
	var openKeys []valuation.Key
	for _, p := range positions {
		key := valuation.Key{MarketID: p.MarketID, Outcome: p.Outcome}
		if p.Amount > 0 {
			if _, resolved := settlements[key]; !resolved && e.valued() {
				openKeys = append(openKeys, key)
			}
		}
	}

	marks := map[valuation.Key]float64{}
	if len(openKeys) > 0 {
		var err error
		marks, err = e.marks.MarkPrices(ctx, openKeys)
		if err != nil {
			// Degrade to unrealized-unknown rather than failing the wallet.
			e.logger.Warn("mark lookup failed, unrealized reported unknown",
				"wallet", res.Wallet, "keys", len(openKeys), "error", err)
			marks = map[valuation.Key]float64{}
		}
	}

	for _, p := range positions {
		snap := PositionSnapshot{
			Wallet:      p.Wallet,
			MarketID:    p.MarketID,
			Outcome:     p.Outcome,
			RealizedPnl: p.RealizedPnl,
			OpenAmount:  p.Amount,
			AvgPrice:    p.AvgPrice,
		}

		if p.Amount > 0 && e.valued() {
			key := valuation.Key{MarketID: p.MarketID, Outcome: p.Outcome}
			if sp, resolved := settlements[key]; resolved {
				// Query-time valuation of resolved-unredeemed inventory;
				// true position state still shows the open amount.
				snap.ResolvedUnrealizedValue = p.Amount * (sp - p.AvgPrice)
				snap.UnrealizedKnown = true
			} else if mark, ok := marks[key]; ok {
				snap.UnrealizedPnl = p.Amount * (mark - p.AvgPrice)
				snap.UnrealizedKnown = true
			} else {
				res.Diagnostics.MissingMarks++
				res.UnrealizedComplete = false
			}
		}

		res.Positions = append(res.Positions, snap)
		res.RealizedPnl += snap.RealizedPnl
		res.UnrealizedPnl += snap.UnrealizedPnl
		res.ResolvedUnrealized += snap.ResolvedUnrealizedValue
	}
}

// valued reports whether this variant values open inventory.
// The historical engines only ever reported realized PnL.
func (e *Engine) valued() bool {
	return e.variant == VariantWeightedAverage
}

// touchedKeys collects every (market, outcome) the stream can touch,
// including all leg outcomes of split/merge markets.
func touchedKeys(events []normEvent, outcomes int) []valuation.Key {
	seen := make(map[valuation.Key]struct{})
	var keys []valuation.Key
	add := func(k valuation.Key) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	for _, ev := range events {
		add(valuation.Key{MarketID: ev.ID, Outcome: ev.Outcome})
		if ev.Kind == model.KindSplit || ev.Kind == model.KindMerge {
			for i := 0; i < outcomes; i++ {
				add(valuation.Key{MarketID: ev.ID, Outcome: i})
			}
		}
	}
	return keys
}

// impliedPrice derives the per-token price from an event's own amounts.
func impliedPrice(ev normEvent) (float64, bool) {
	tokens := math.Abs(ev.TokenAmount)
	if tokens == 0 {
		return 0, false
	}
	return math.Abs(ev.CashAmount) / tokens, true
}
