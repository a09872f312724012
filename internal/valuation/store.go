package valuation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkorzen/poly-pnl/internal/identity"
	"github.com/mkorzen/poly-pnl/internal/model"
)

// ResolutionStore reads resolution records from postgres. Resolutions are
// append-only rows, written once when a market resolves.
type ResolutionStore struct {
	db *pgxpool.Pool
}

// NewResolutionStore creates a store over the given pool.
func NewResolutionStore(db *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{db: db}
}

// FetchResolutions implements ResolutionFetcher.
func (s *ResolutionStore) FetchResolutions(ctx context.Context) ([]model.ResolutionRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT market_id, outcome, settlement, resolved_at FROM resolutions`)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	var records []model.ResolutionRecord
	for rows.Next() {
		var r model.ResolutionRecord
		if err := rows.Scan(&r.MarketID, &r.Outcome, &r.Settlement, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan resolution row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolution rows: %w", err)
	}
	return records, nil
}

// SettlementPrice implements Resolver.
func (s *ResolutionStore) SettlementPrice(ctx context.Context, key Key) (float64, bool, error) {
	var price float64
	err := s.db.QueryRow(ctx,
		`SELECT settlement FROM resolutions WHERE market_id = $1 AND outcome = $2`,
		string(key.MarketID), key.Outcome).Scan(&price)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query settlement: %w", err)
	}
	return price, true, nil
}

// Settlements implements Resolver with one round trip for all keys.
func (s *ResolutionStore) Settlements(ctx context.Context, keys []Key) (map[Key]float64, error) {
	if len(keys) == 0 {
		return map[Key]float64{}, nil
	}

	markets := make([]string, len(keys))
	outcomes := make([]int, len(keys))
	for i, k := range keys {
		markets[i] = string(k.MarketID)
		outcomes[i] = k.Outcome
	}

	// unnest pairs the two arrays positionally, so only requested
	// (market, outcome) combinations match.
	rows, err := s.db.Query(ctx, `
		SELECT r.market_id, r.outcome, r.settlement
		FROM resolutions r
		JOIN unnest($1::text[], $2::int[]) AS want(market_id, outcome)
		  ON r.market_id = want.market_id AND r.outcome = want.outcome`,
		markets, outcomes)
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	defer rows.Close()

	out := make(map[Key]float64, len(keys))
	for rows.Next() {
		var market string
		var outcome int
		var price float64
		if err := rows.Scan(&market, &outcome, &price); err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}
		out[Key{MarketID: identity.CanonicalID(market), Outcome: outcome}] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return out, nil
}

// TradeMarks derives mark prices from the most recent recorded trade per
// outcome. With neutralFallback set, a market with no trade data at all
// marks at NeutralMark instead of reporting missing.
type TradeMarks struct {
	db              *pgxpool.Pool
	neutralFallback bool
}

// NewTradeMarks creates a trade-derived mark source.
func NewTradeMarks(db *pgxpool.Pool, neutralFallback bool) *TradeMarks {
	return &TradeMarks{db: db, neutralFallback: neutralFallback}
}

// MarkPrice implements MarkSource.
func (m *TradeMarks) MarkPrice(ctx context.Context, key Key) (float64, error) {
	var price float64
	err := m.db.QueryRow(ctx, `
		SELECT price FROM mark_trades
		WHERE market_id = $1 AND outcome = $2
		ORDER BY ts DESC LIMIT 1`,
		string(key.MarketID), key.Outcome).Scan(&price)
	if err == nil {
		return price, nil
	}
	if !isNoRows(err) {
		return 0, fmt.Errorf("query mark price: %w", err)
	}

	if m.neutralFallback {
		var exists bool
		err := m.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM mark_trades WHERE market_id = $1)`,
			string(key.MarketID)).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("check market trades: %w", err)
		}
		if !exists {
			return NeutralMark, nil
		}
	}
	return 0, &MissingValuationError{Key: key}
}

// MarkPrices implements MarkSource with one round trip for all keys.
// With neutralFallback set, unanswered keys whose market has no trade data
// at all are filled with NeutralMark in a second round trip.
func (m *TradeMarks) MarkPrices(ctx context.Context, keys []Key) (map[Key]float64, error) {
	if len(keys) == 0 {
		return map[Key]float64{}, nil
	}

	markets := make([]string, len(keys))
	outcomes := make([]int, len(keys))
	for i, k := range keys {
		markets[i] = string(k.MarketID)
		outcomes[i] = k.Outcome
	}

	rows, err := m.db.Query(ctx, `
		SELECT DISTINCT ON (t.market_id, t.outcome) t.market_id, t.outcome, t.price
		FROM mark_trades t
		JOIN unnest($1::text[], $2::int[]) AS want(market_id, outcome)
		  ON t.market_id = want.market_id AND t.outcome = want.outcome
		ORDER BY t.market_id, t.outcome, t.ts DESC`,
		markets, outcomes)
	if err != nil {
		return nil, fmt.Errorf("query mark prices: %w", err)
	}
	defer rows.Close()

	out := make(map[Key]float64, len(keys))
	for rows.Next() {
		var market string
		var outcome int
		var price float64
		if err := rows.Scan(&market, &outcome, &price); err != nil {
			return nil, fmt.Errorf("scan mark row: %w", err)
		}
		out[Key{MarketID: identity.CanonicalID(market), Outcome: outcome}] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mark rows: %w", err)
	}

	if m.neutralFallback && len(out) < len(keys) {
		traded, err := m.tradedMarkets(ctx, unansweredMarkets(keys, out))
		if err != nil {
			return nil, err
		}
		fillNeutralMarks(keys, out, traded)
	}
	return out, nil
}

// unansweredMarkets returns the distinct markets of keys absent from out.
func unansweredMarkets(keys []Key, out map[Key]float64) []string {
	seen := make(map[identity.CanonicalID]bool)
	var markets []string
	for _, k := range keys {
		if _, ok := out[k]; ok {
			continue
		}
		if !seen[k.MarketID] {
			seen[k.MarketID] = true
			markets = append(markets, string(k.MarketID))
		}
	}
	return markets
}

// tradedMarkets reports which of the given markets have any trade rows.
func (m *TradeMarks) tradedMarkets(ctx context.Context, markets []string) (map[identity.CanonicalID]bool, error) {
	traded := make(map[identity.CanonicalID]bool, len(markets))
	if len(markets) == 0 {
		return traded, nil
	}
	rows, err := m.db.Query(ctx,
		`SELECT DISTINCT market_id FROM mark_trades WHERE market_id = ANY($1::text[])`,
		markets)
	if err != nil {
		return nil, fmt.Errorf("check market trades: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var market string
		if err := rows.Scan(&market); err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}
		traded[identity.CanonicalID(market)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market rows: %w", err)
	}
	return traded, nil
}

// fillNeutralMarks marks unanswered keys at NeutralMark, but only when the
// market has no trade data at all. A market with any trades keeps its
// missing outcomes missing.
func fillNeutralMarks(keys []Key, out map[Key]float64, traded map[identity.CanonicalID]bool) {
	for _, k := range keys {
		if _, ok := out[k]; ok {
			continue
		}
		if !traded[k.MarketID] {
			out[k] = NeutralMark
		}
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
