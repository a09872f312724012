package valuation

import (
	"context"

	"github.com/mkorzen/poly-pnl/internal/identity"
	"github.com/mkorzen/poly-pnl/internal/model"
)

// StaticResolver is an immutable in-memory Resolver, built from resolution
// records. Used by tests and one-shot batch runs.
type StaticResolver struct {
	prices map[Key]float64
}

// NewStaticResolver builds a resolver from resolution records. Records with
// non-canonical market ids are assumed already normalized by the producer.
func NewStaticResolver(records []model.ResolutionRecord) *StaticResolver {
	prices := make(map[Key]float64, len(records))
	for _, r := range records {
		prices[Key{MarketID: identity.CanonicalID(r.MarketID), Outcome: r.Outcome}] = r.Settlement
	}
	return &StaticResolver{prices: prices}
}

func (r *StaticResolver) SettlementPrice(_ context.Context, key Key) (float64, bool, error) {
	p, ok := r.prices[key]
	return p, ok, nil
}

func (r *StaticResolver) Settlements(_ context.Context, keys []Key) (map[Key]float64, error) {
	out := make(map[Key]float64, len(keys))
	for _, k := range keys {
		if p, ok := r.prices[k]; ok {
			out[k] = p
		}
	}
	return out, nil
}

// StaticMarks is an immutable in-memory MarkSource.
type StaticMarks struct {
	prices          map[Key]float64
	neutralFallback bool
}

// NewStaticMarks builds a mark source from a fixed price table. With
// neutralFallback set, a source that is entirely empty answers NeutralMark
// for every key instead of reporting missing.
func NewStaticMarks(prices map[Key]float64, neutralFallback bool) *StaticMarks {
	cp := make(map[Key]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &StaticMarks{prices: cp, neutralFallback: neutralFallback}
}

func (m *StaticMarks) MarkPrice(_ context.Context, key Key) (float64, error) {
	if p, ok := m.prices[key]; ok {
		return p, nil
	}
	if m.neutralFallback && len(m.prices) == 0 {
		return NeutralMark, nil
	}
	return 0, &MissingValuationError{Key: key}
}

func (m *StaticMarks) MarkPrices(_ context.Context, keys []Key) (map[Key]float64, error) {
	out := make(map[Key]float64, len(keys))
	for _, k := range keys {
		if p, ok := m.prices[k]; ok {
			out[k] = p
		} else if m.neutralFallback && len(m.prices) == 0 {
			out[k] = NeutralMark
		}
	}
	return out, nil
}
