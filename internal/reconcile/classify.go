package reconcile

import (
	"math"

	"github.com/mkorzen/poly-pnl/internal/ledger"
)

// RootCause labels why a wallet failed reconciliation. Every failure gets
// at least one candidate cause; an unclassified mismatch is a harness bug.
type RootCause string

const (
	// CauseDataQualityGap: the diagnostics show the engine was working
	// around bad inputs (clamped sells, quarantined ids, unpriced
	// redemptions, missing marks), so the mismatch is explainable by the
	// data rather than the formula.
	CauseDataQualityGap RootCause = "data_quality_gap"
	// CauseConventionMismatch: the result under the other resolved-value
	// convention lands much closer to truth, so the oracle likely counts
	// resolved-unredeemed value differently than the scored candidate.
	CauseConventionMismatch RootCause = "convention_mismatch"
	// CauseFormulaDefect: clean inputs, no convention explains the gap.
	// The transition logic itself is the remaining suspect.
	CauseFormulaDefect RootCause = "formula_defect"
)

// classifyFailure picks the most likely cause for a failed wallet.
// withResolved and withoutResolved are the engine totals under the two
// resolved-unredeemed conventions; both already failed tolerance.
func classifyFailure(diag ledger.Diagnostics, truth, withResolved, withoutResolved float64) RootCause {
	if diag.ClampedSells > 0 || diag.UnrecognizedIDs > 0 ||
		diag.UnpricedRedemptions > 0 || diag.MissingMarks > 0 {
		return CauseDataQualityGap
	}

	errWith := math.Abs(withResolved - truth)
	errWithout := math.Abs(withoutResolved - truth)
	gap := math.Abs(withResolved - withoutResolved)
	if gap > 0 && math.Min(errWith, errWithout) < gap/2 {
		// Most of the discrepancy is the resolved-value term itself.
		return CauseConventionMismatch
	}

	return CauseFormulaDefect
}
