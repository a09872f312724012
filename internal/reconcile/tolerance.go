package reconcile

import (
	"math"

	"github.com/mkorzen/poly-pnl/internal/model"
)

// Rule names for Verdict.RuleApplied.
const (
	RuleRelative = "relative"
	RuleAbsolute = "absolute"
	RuleBoth     = "both"
)

// ToleranceRule decides pass/fail for one cohort.
//
// When |truth| exceeds Threshold the relative rule applies: relative error
// under RelativePct and matching sign. Below Threshold the absolute rule
// applies: absolute error under AbsoluteAmount. At exactly Threshold both
// rules are evaluated and both must pass.
type ToleranceRule struct {
	Threshold      float64 // |truth| boundary between the two rules
	RelativePct    float64 // Max relative error, as a fraction (0.05 = 5%)
	AbsoluteAmount float64 // Max absolute error for small truth values
}

// RuleSet maps each cohort to its tolerance rule.
type RuleSet map[model.Cohort]ToleranceRule

// DefaultRules returns the documented per-cohort tolerances. Trade-only
// wallets are held to a tighter bound than lifecycle-bearing ones, whose
// ground truth is noisier.
func DefaultRules() RuleSet {
	return RuleSet{
		model.CohortTradeOnly: {Threshold: 100, RelativePct: 0.01, AbsoluteAmount: 1},
		model.CohortLifecycle: {Threshold: 100, RelativePct: 0.05, AbsoluteAmount: 5},
	}
}

// Verdict is the outcome of evaluating one (truth, computed) pair.
type Verdict struct {
	Pass        bool
	AbsError    float64
	RelError    float64 // math.Inf(1) when truth is zero and error is not
	SignMatch   bool
	RuleApplied string
}

// Evaluate scores a computed PnL value against ground truth.
func (r ToleranceRule) Evaluate(truth, computed float64) Verdict {
	v := Verdict{
		AbsError:  math.Abs(computed - truth),
		SignMatch: sameSign(truth, computed),
	}
	if truth != 0 {
		v.RelError = v.AbsError / math.Abs(truth)
	} else if v.AbsError > 0 {
		v.RelError = math.Inf(1)
	}

	relPass := v.RelError <= r.RelativePct && v.SignMatch
	absPass := v.AbsError <= r.AbsoluteAmount

	switch magnitude := math.Abs(truth); {
	case magnitude > r.Threshold:
		v.RuleApplied = RuleRelative
		v.Pass = relPass
	case magnitude < r.Threshold:
		v.RuleApplied = RuleAbsolute
		v.Pass = absPass
	default:
		// Exactly on the boundary: the stricter combination governs.
		v.RuleApplied = RuleBoth
		v.Pass = relPass && absPass
	}
	return v
}

// sameSign treats zero as matching only zero: a truth of +40 against a
// computed -40 must not pass on magnitude alone.
func sameSign(a, b float64) bool {
	if a == 0 || b == 0 {
		return a == b
	}
	return (a > 0) == (b > 0)
}
