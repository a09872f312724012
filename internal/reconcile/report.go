package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkorzen/poly-pnl/internal/ledger"
	"github.com/mkorzen/poly-pnl/internal/model"
)

// WalletOutcome is the scored result for one (wallet, variant) pair.
// Either Err is set (the wallet could not be computed) or the verdict
// fields are.
type WalletOutcome struct {
	Wallet  string
	Cohort  model.Cohort
	Variant ledger.Variant

	TruthPnl  float64
	EnginePnl float64 // Best-scoring candidate value

	// ConventionUsed and IncludedResolved record which PnL composition the
	// best candidate used, since the oracle is not consistent about either.
	ConventionUsed   model.OracleConvention
	IncludedResolved bool

	Verdict   Verdict
	RootCause RootCause // Empty on pass

	Diagnostics ledger.Diagnostics
	Err         string // Non-empty when the wallet errored out
}

// Passed reports whether this outcome counts as a pass.
func (o *WalletOutcome) Passed() bool {
	return o.Err == "" && o.Verdict.Pass
}

// CohortStats aggregates pass/fail counts for one cohort.
type CohortStats struct {
	Total    int
	Passed   int
	Failed   int
	Errored  int
	PassRate float64 // Passed / (Total - Errored), 0 when nothing scored
}

// Report is the result of one harness run. Append-only once finished.
type Report struct {
	RunID          uuid.UUID
	DatasetVersion int
	StartedAt      time.Time
	FinishedAt     time.Time

	// EventsFetched counts raw events pulled from the source across all
	// wallets, before deduplication.
	EventsFetched int64

	Outcomes []WalletOutcome
	ByCohort map[model.Cohort]CohortStats
}

// finalize fills the per-cohort aggregates from the outcomes.
func (r *Report) finalize() {
	r.ByCohort = make(map[model.Cohort]CohortStats)
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		stats := r.ByCohort[o.Cohort]
		stats.Total++
		switch {
		case o.Err != "":
			stats.Errored++
		case o.Verdict.Pass:
			stats.Passed++
		default:
			stats.Failed++
		}
		r.ByCohort[o.Cohort] = stats
	}
	for cohort, stats := range r.ByCohort {
		if scored := stats.Total - stats.Errored; scored > 0 {
			stats.PassRate = float64(stats.Passed) / float64(scored)
		}
		r.ByCohort[cohort] = stats
	}
}

// Passed reports whether every scored wallet passed and none errored.
func (r *Report) Passed() bool {
	for _, stats := range r.ByCohort {
		if stats.Failed > 0 || stats.Errored > 0 {
			return false
		}
	}
	return true
}
