package valuation

import (
	"testing"

	"github.com/mkorzen/poly-pnl/internal/identity"
)

const mktB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func TestFillNeutralMarks(t *testing.T) {
	kA0 := Key{MarketID: identity.CanonicalID(mktA), Outcome: 0}
	kA1 := Key{MarketID: identity.CanonicalID(mktA), Outcome: 1}
	kB0 := Key{MarketID: identity.CanonicalID(mktB), Outcome: 0}

	keys := []Key{kA0, kA1, kB0}
	out := map[Key]float64{kA0: 0.62}

	if got := unansweredMarkets(keys, out); len(got) != 2 {
		t.Fatalf("unansweredMarkets = %v, want both markets", got)
	}

	// Market A traded (kA0 answered): its missing outcome must stay
	// missing. Market B has no trades at all and falls back to neutral.
	fillNeutralMarks(keys, out, map[identity.CanonicalID]bool{
		identity.CanonicalID(mktA): true,
	})

	if out[kA0] != 0.62 {
		t.Errorf("answered key = %v, want 0.62 untouched", out[kA0])
	}
	if _, ok := out[kA1]; ok {
		t.Error("traded market's missing outcome must not be filled")
	}
	if out[kB0] != NeutralMark {
		t.Errorf("untraded market = %v, want NeutralMark", out[kB0])
	}
}

func TestFillNeutralMarksAllAnswered(t *testing.T) {
	k := Key{MarketID: identity.CanonicalID(mktA), Outcome: 0}
	out := map[Key]float64{k: 0.4}

	if got := unansweredMarkets([]Key{k}, out); got != nil {
		t.Errorf("unansweredMarkets = %v, want nil", got)
	}
	fillNeutralMarks([]Key{k}, out, nil)
	if len(out) != 1 || out[k] != 0.4 {
		t.Errorf("out = %v, want unchanged single entry", out)
	}
}
