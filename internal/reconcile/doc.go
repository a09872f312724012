// Package reconcile validates engine PnL against ground-truth samples.
//
// A Harness drives the full pipeline (event fetch, dedup, ledger replay,
// valuation) for every wallet in a versioned ValidationCase dataset, scores
// the result with cohort-aware tolerance rules, and classifies every
// failure with a candidate root cause. Multiple engine variants run side
// by side so historical algorithms stay comparable without duplicating
// ingestion or normalization.
package reconcile
