package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunStore persists finished harness runs. Append-only: historical runs
// stay as records, never prose reports, and are never updated.
type RunStore struct {
	db *pgxpool.Pool
}

// NewRunStore creates a store over the given pool.
func NewRunStore(db *pgxpool.Pool) *RunStore {
	return &RunStore{db: db}
}

// SaveReport writes the run header and every outcome in one transaction.
func (s *RunStore) SaveReport(ctx context.Context, report *Report) error {
	var passed, failed, errored int
	for _, stats := range report.ByCohort {
		passed += stats.Passed
		failed += stats.Failed
		errored += stats.Errored
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO reconciliation_runs
			(run_id, dataset_version, started_at, finished_at, outcomes, passed, failed, errored)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.RunID, report.DatasetVersion, report.StartedAt, report.FinishedAt,
		len(report.Outcomes), passed, failed, errored)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"reconciliation_results"},
		[]string{"run_id", "wallet", "cohort", "variant", "truth_pnl", "engine_pnl",
			"convention", "included_resolved", "passed", "abs_error", "rel_error",
			"rule_applied", "root_cause", "error"},
		pgx.CopyFromSlice(len(report.Outcomes), func(i int) ([]any, error) {
			o := report.Outcomes[i]
			return []any{
				report.RunID, o.Wallet, string(o.Cohort), string(o.Variant),
				o.TruthPnl, o.EnginePnl, string(o.ConventionUsed), o.IncludedResolved,
				o.Passed(), o.Verdict.AbsError, o.Verdict.RelError,
				o.Verdict.RuleApplied, string(o.RootCause), o.Err,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy run results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run tx: %w", err)
	}
	return nil
}

// PassRateHistory returns the overall pass fraction of the most recent
// runs for a dataset version, newest first. Used for regression gating.
func (s *RunStore) PassRateHistory(ctx context.Context, datasetVersion, limit int) ([]float64, error) {
	const q = `
		SELECT passed, outcomes - errored
		FROM reconciliation_runs
		WHERE dataset_version = $1
		ORDER BY finished_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, q, datasetVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var rates []float64
	for rows.Next() {
		var passed, scored int
		if err := rows.Scan(&passed, &scored); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if scored > 0 {
			rates = append(rates, float64(passed)/float64(scored))
		} else {
			rates = append(rates, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return rates, nil
}
