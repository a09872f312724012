package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkorzen/poly-pnl/internal/model"
)

// EventStore reads the raw event log from postgres. The log is append-only;
// the store never mutates it.
type EventStore struct {
	db *pgxpool.Pool
}

// NewEventStore creates a store over the given pool.
func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

// FetchWalletEvents returns all raw events for a wallet within [from, to)
// (µs since epoch; to <= 0 means unbounded), ordered by (timestamp, source id).
// Rows may still contain upstream duplicates; callers run Deduplicate.
func (s *EventStore) FetchWalletEvents(ctx context.Context, wallet string, from, to int64) ([]model.RawEvent, error) {
	const q = `
		SELECT source_id, wallet, market_id, outcome, token_amount, cash_amount, ts, kind
		FROM raw_events
		WHERE wallet = $1 AND ts >= $2 AND ($3 <= 0 OR ts < $3)
		ORDER BY ts, source_id`

	rows, err := s.db.Query(ctx, q, wallet, from, to)
	if err != nil {
		return nil, fmt.Errorf("query wallet events: %w", err)
	}
	defer rows.Close()

	var events []model.RawEvent
	for rows.Next() {
		var ev model.RawEvent
		var kind string
		if err := rows.Scan(&ev.SourceID, &ev.Wallet, &ev.RawMarketID, &ev.Outcome,
			&ev.TokenAmount, &ev.CashAmount, &ev.Timestamp, &kind); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// CountWalletEvents returns the raw (pre-dedup) row count for a wallet.
func (s *EventStore) CountWalletEvents(ctx context.Context, wallet string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM raw_events WHERE wallet = $1`, wallet).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count wallet events: %w", err)
	}
	return n, nil
}
