package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mkorzen/poly-pnl/internal/model"
	"github.com/mkorzen/poly-pnl/internal/valuation"
)

const (
	testWallet = "0x1111111111111111111111111111111111111111"
	testMarket = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

var seq int64

func ev(kind model.EventKind, outcome int, tokens, cash float64) model.RawEvent {
	seq++
	return model.RawEvent{
		SourceID:    fmt.Sprintf("ev-%04d", seq),
		Wallet:      testWallet,
		RawMarketID: "0x" + strings.ToUpper(testMarket), // exercises the identity gate
		Outcome:     outcome,
		TokenAmount: tokens,
		CashAmount:  cash,
		Timestamp:   1700000000000000 + seq*1_000_000,
		Kind:        kind,
	}
}

func newTestEngine(variant Variant, resolver valuation.Resolver, marks valuation.MarkSource) *Engine {
	if resolver == nil {
		resolver = valuation.NewStaticResolver(nil)
	}
	if marks == nil {
		marks = valuation.NewStaticMarks(nil, false)
	}
	return New(Config{}, variant, resolver, marks, nil)
}

func findSnap(t *testing.T, res *WalletResult, outcome int) PositionSnapshot {
	t.Helper()
	for _, s := range res.Positions {
		if s.Outcome == outcome {
			return s
		}
	}
	t.Fatalf("no snapshot for outcome %d", outcome)
	return PositionSnapshot{}
}

func TestEngineBuySellFlow(t *testing.T) {
	e := newTestEngine(VariantWeightedAverage, nil, nil)

	events := []model.RawEvent{
		ev(model.KindTradeBuy, 0, 100, -30),  // 100 @ 0.30
		ev(model.KindTradeBuy, 0, 100, -50),  // 100 @ 0.50
		ev(model.KindTradeSell, 0, -150, 90), // 150 @ 0.60
	}

	res, err := e.ProcessWallet(context.Background(), testWallet, events)
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}

	snap := findSnap(t, res, 0)
	if !almostEqual(snap.RealizedPnl, 30) {
		t.Errorf("RealizedPnl = %v, want 30", snap.RealizedPnl)
	}
	if !almostEqual(snap.OpenAmount, 50) {
		t.Errorf("OpenAmount = %v, want 50", snap.OpenAmount)
	}
	if !almostEqual(snap.AvgPrice, 0.40) {
		t.Errorf("AvgPrice = %v, want 0.40", snap.AvgPrice)
	}
	if res.Diagnostics.EventCounts[model.KindTradeBuy] != 2 {
		t.Errorf("buy count = %d, want 2", res.Diagnostics.EventCounts[model.KindTradeBuy])
	}
}

func TestEngineSplitMerge(t *testing.T) {
	e := newTestEngine(VariantWeightedAverage, nil, nil)

	// Splitting 1 unit of collateral: buy 1 YES @ 0.5 and 1 NO @ 0.5.
	res, err := e.ProcessWallet(context.Background(), testWallet, []model.RawEvent{
		ev(model.KindSplit, 0, 1, -1),
	})
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}

	if len(res.Positions) != 2 {
		t.Fatalf("positions = %d, want 2 (one per outcome)", len(res.Positions))
	}
	for _, outcome := range []int{0, 1} {
		snap := findSnap(t, res, outcome)
		if !almostEqual(snap.OpenAmount, 1) || !almostEqual(snap.AvgPrice, 0.5) {
			t.Errorf("outcome %d: amount/avg = %v/%v, want 1/0.5", outcome, snap.OpenAmount, snap.AvgPrice)
		}
	}

	// A merge at the same even price closes both legs with zero realized.
	res, err = e.ProcessWallet(context.Background(), testWallet, []model.RawEvent{
		ev(model.KindSplit, 0, 1, -1),
		ev(model.KindMerge, 0, -1, 1),
	})
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}
	for _, outcome := range []int{0, 1} {
		snap := findSnap(t, res, outcome)
		if !almostEqual(snap.RealizedPnl, 0) || !almostEqual(snap.OpenAmount, 0) {
			t.Errorf("outcome %d after merge: realized/amount = %v/%v, want 0/0",
				outcome, snap.RealizedPnl, snap.OpenAmount)
		}
	}
}

func TestEngineRedemption(t *testing.T) {
	resolver := valuation.NewStaticResolver([]model.ResolutionRecord{
		{MarketID: testMarket, Outcome: 0, Settlement: 1.0},
	})
	e := newTestEngine(VariantWeightedAverage, resolver, nil)

	events := []model.RawEvent{
		ev(model.KindTradeBuy, 0, 100, -30),
		ev(model.KindTradeBuy, 0, 100, -50),
		ev(model.KindTradeSell, 0, -150, 90),
		// Redeem the remaining 50 at settlement 1.0.
		ev(model.KindRedemption, 0, -50, 50),
	}

	res, err := e.ProcessWallet(context.Background(), testWallet, events)
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}

	snap := findSnap(t, res, 0)
	// 30 from the sell plus 50 x (1.0 - 0.40) = 30 from redemption.
	if !almostEqual(snap.RealizedPnl, 60) {
		t.Errorf("RealizedPnl = %v, want 60", snap.RealizedPnl)
	}
	if snap.OpenAmount != 0 {
		t.Errorf("OpenAmount = %v, want 0 (closed)", snap.OpenAmount)
	}
	if !almostEqual(snap.ResolvedUnrealizedValue, 0) {
		t.Errorf("ResolvedUnrealizedValue = %v, want 0 after redemption", snap.ResolvedUnrealizedValue)
	}
}

func TestEngineResolvedUnredeemedStaysSeparate(t *testing.T) {
	resolver := valuation.NewStaticResolver([]model.ResolutionRecord{
		{MarketID: testMarket, Outcome: 0, Settlement: 1.0},
	})
	e := newTestEngine(VariantWeightedAverage, resolver, nil)

	events := []model.RawEvent{
		ev(model.KindTradeBuy, 0, 100, -30),
		ev(model.KindTradeBuy, 0, 100, -50),
		ev(model.KindTradeSell, 0, -150, 90),
		// Market resolved but the wallet never redeemed.
	}

	res, err := e.ProcessWallet(context.Background(), testWallet, events)
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}

	snap := findSnap(t, res, 0)
	if !almostEqual(snap.RealizedPnl, 30) {
		t.Errorf("RealizedPnl = %v, want 30 (never pre-summed)", snap.RealizedPnl)
	}
	if !almostEqual(snap.ResolvedUnrealizedValue, 50*(1.0-0.40)) {
		t.Errorf("ResolvedUnrealizedValue = %v, want 30", snap.ResolvedUnrealizedValue)
	}
	if !almostEqual(snap.OpenAmount, 50) {
		t.Errorf("OpenAmount = %v, want 50 (true state keeps open inventory)", snap.OpenAmount)
	}

	if !almostEqual(res.TotalPnl(false, false), 30) {
		t.Errorf("TotalPnl(false,false) = %v, want 30", res.TotalPnl(false, false))
	}
	if !almostEqual(res.TotalPnl(true, false), 60) {
		t.Errorf("TotalPnl(true,false) = %v, want 60", res.TotalPnl(true, false))
	}
}

func TestEngineUnresolvedMarkToMarket(t *testing.T) {
	marks := valuation.NewStaticMarks(map[valuation.Key]float64{
		{MarketID: testMarket, Outcome: 0}: 0.70,
	}, false)
	e := newTestEngine(VariantWeightedAverage, nil, marks)

	res, err := e.ProcessWallet(context.Background(), testWallet, []model.RawEvent{
		ev(model.KindTradeBuy, 0, 100, -40),
	})
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}

	snap := findSnap(t, res, 0)
	if !snap.UnrealizedKnown {
		t.Fatal("UnrealizedKnown = false, want true")
	}
	if !almostEqual(snap.UnrealizedPnl, 100*(0.70-0.40)) {
		t.Errorf("UnrealizedPnl = %v, want 30", snap.UnrealizedPnl)
	}
	if !res.UnrealizedComplete {
		t.Error("UnrealizedComplete = false, want true")
	}
}

func TestEngineNeutralFallbackMark(t *testing.T) {
	// A source with no trade data at all and the fallback enabled answers
	// the neutral mark through the batch lookup the engine uses.
	e := newTestEngine(VariantWeightedAverage, nil, valuation.NewStaticMarks(nil, true))

	res, err := e.ProcessWallet(context.Background(), testWallet, []model.RawEvent{
		ev(model.KindTradeBuy, 0, 100, -40),
	})
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}

	snap := findSnap(t, res, 0)
	if !snap.UnrealizedKnown {
		t.Fatal("UnrealizedKnown = false, want true (neutral fallback)")
	}
	if !almostEqual(snap.UnrealizedPnl, 100*(valuation.NeutralMark-0.40)) {
		t.Errorf("UnrealizedPnl = %v, want 10", snap.UnrealizedPnl)
	}
	if res.Diagnostics.MissingMarks != 0 {
		t.Errorf("MissingMarks = %d, want 0", res.Diagnostics.MissingMarks)
	}
}

func TestEngineMissingMarkReportedUnknown(t *testing.T) {
	e := newTestEngine(VariantWeightedAverage, nil, nil) // no marks at all

	res, err := e.ProcessWallet(context.Background(), testWallet, []model.RawEvent{
		ev(model.KindTradeBuy, 0, 100, -40),
	})
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}

	snap := findSnap(t, res, 0)
	if snap.UnrealizedKnown {
		t.Error("UnrealizedKnown = true, want false (no fabricated mark)")
	}
	if res.UnrealizedComplete {
		t.Error("UnrealizedComplete = true, want false")
	}
	if res.Diagnostics.MissingMarks != 1 {
		t.Errorf("MissingMarks = %d, want 1", res.Diagnostics.MissingMarks)
	}
}

func TestEngineQuarantinesUnrecognizedIDs(t *testing.T) {
	e := newTestEngine(VariantWeightedAverage, nil, nil)

	bad := ev(model.KindTradeBuy, 0, 100, -40)
	bad.RawMarketID = "not-a-market"
	good := ev(model.KindTradeBuy, 0, 100, -40)

	res, err := e.ProcessWallet(context.Background(), testWallet, []model.RawEvent{bad, good})
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}

	if res.Diagnostics.UnrecognizedIDs != 1 {
		t.Errorf("UnrecognizedIDs = %d, want 1", res.Diagnostics.UnrecognizedIDs)
	}
	if len(res.Quarantined) != 1 || res.Quarantined[0].RawMarketID != "not-a-market" {
		t.Errorf("Quarantined = %v, want the bad event", res.Quarantined)
	}
	// The good event still computed.
	if !almostEqual(findSnap(t, res, 0).OpenAmount, 100) {
		t.Error("good event should still produce a position")
	}
}

func TestEngineOrdersByTimestamp(t *testing.T) {
	e := newTestEngine(VariantWeightedAverage, nil, nil)

	// Sell arrives first in the slice but later in time: the buy must
	// apply first, so nothing clamps.
	sell := ev(model.KindTradeSell, 0, -100, 60)
	buy := ev(model.KindTradeBuy, 0, 100, -40)
	buy.Timestamp = sell.Timestamp - 1

	res, err := e.ProcessWallet(context.Background(), testWallet, []model.RawEvent{sell, buy})
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}
	if res.Diagnostics.ClampedSells != 0 {
		t.Errorf("ClampedSells = %d, want 0 (events must replay in time order)", res.Diagnostics.ClampedSells)
	}
	if !almostEqual(res.RealizedPnl, 100*(0.60-0.40)) {
		t.Errorf("RealizedPnl = %v, want 20", res.RealizedPnl)
	}
}

func TestEngineUnpricedRedemption(t *testing.T) {
	e := newTestEngine(VariantWeightedAverage, nil, nil)

	red := ev(model.KindRedemption, 0, 0, 0) // no resolution, no implied price
	res, err := e.ProcessWallet(context.Background(), testWallet, []model.RawEvent{
		ev(model.KindTradeBuy, 0, 100, -40),
		red,
	})
	if err != nil {
		t.Fatalf("ProcessWallet error: %v", err)
	}
	if res.Diagnostics.UnpricedRedemptions != 1 {
		t.Errorf("UnpricedRedemptions = %d, want 1", res.Diagnostics.UnpricedRedemptions)
	}
	// Position untouched by the unpriced redemption.
	if !almostEqual(findSnap(t, res, 0).OpenAmount, 100) {
		t.Error("unpriced redemption must not mutate the position")
	}
}

func TestVariantsDiverge(t *testing.T) {
	events := []model.RawEvent{
		ev(model.KindSplit, 0, 100, -100),     // 100 YES + 100 NO @ 0.5
		ev(model.KindTradeSell, 0, -100, 80),  // sell YES @ 0.8
		ev(model.KindTradeSell, 1, -100, 30),  // sell NO @ 0.3
	}

	canonical, err := newTestEngine(VariantWeightedAverage, nil, nil).
		ProcessWallet(context.Background(), testWallet, events)
	if err != nil {
		t.Fatalf("canonical error: %v", err)
	}
	// 100x(0.8-0.5) + 100x(0.3-0.5) = 30 - 20 = 10.
	if !almostEqual(canonical.RealizedPnl, 10) {
		t.Errorf("canonical RealizedPnl = %v, want 10", canonical.RealizedPnl)
	}

	fifo, err := newTestEngine(VariantRoleFIFO, nil, nil).
		ProcessWallet(context.Background(), testWallet, events)
	if err != nil {
		t.Fatalf("fifo error: %v", err)
	}
	// FIFO never saw the split, so the sells found no lots.
	if !almostEqual(fifo.RealizedPnl, 0) {
		t.Errorf("role_fifo RealizedPnl = %v, want 0", fifo.RealizedPnl)
	}

	cash, err := newTestEngine(VariantCashFlow, nil, nil).
		ProcessWallet(context.Background(), testWallet, events)
	if err != nil {
		t.Fatalf("cashflow error: %v", err)
	}
	// Cash aggregation ignores the split's collateral outflow: +80 +30.
	if !almostEqual(cash.RealizedPnl, 110) {
		t.Errorf("cash_flow RealizedPnl = %v, want 110", cash.RealizedPnl)
	}
}

func TestParseVariant(t *testing.T) {
	if _, err := ParseVariant("weighted_average"); err != nil {
		t.Errorf("ParseVariant(weighted_average) error: %v", err)
	}
	if _, err := ParseVariant("lifo"); err == nil {
		t.Error("ParseVariant(lifo) succeeded, want error")
	}
}
