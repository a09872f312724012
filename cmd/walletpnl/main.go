// Command walletpnl computes and prints one wallet's PnL breakdown.
// A debugging tool for investigating single-wallet mismatches without a
// full reconciliation run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mkorzen/poly-pnl/internal/config"
	"github.com/mkorzen/poly-pnl/internal/database"
	"github.com/mkorzen/poly-pnl/internal/ingest"
	"github.com/mkorzen/poly-pnl/internal/ledger"
	"github.com/mkorzen/poly-pnl/internal/valuation"
)

func main() {
	configPath := flag.String("config", "configs/reconciler.local.yaml", "path to config file")
	wallet := flag.String("wallet", "", "wallet address (required)")
	variantName := flag.String("variant", "weighted_average", "engine variant")
	from := flag.Int64("from", 0, "range start, µs since epoch")
	to := flag.Int64("to", 0, "range end, µs since epoch (0 = unbounded)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if *wallet == "" {
		fmt.Fprintln(os.Stderr, "walletpnl: -wallet is required")
		os.Exit(2)
	}
	variant, err := ledger.ParseVariant(*variantName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walletpnl: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walletpnl: load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walletpnl: connect database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	raw, err := ingest.NewEventStore(pool).FetchWalletEvents(ctx, *wallet, *from, *to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walletpnl: fetch events: %v\n", err)
		os.Exit(1)
	}
	events, err := ingest.Deduplicate(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walletpnl: %v\n", err)
		os.Exit(1)
	}

	engine := ledger.New(
		ledger.Config{OutcomeCount: cfg.Harness.OutcomeCount},
		variant,
		valuation.NewResolutionStore(pool),
		valuation.NewTradeMarks(pool, cfg.Valuation.NeutralFallback),
		logger,
	)
	res, err := engine.ProcessWallet(ctx, *wallet, events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walletpnl: process wallet: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wallet   %s\n", *wallet)
	fmt.Printf("variant  %s\n", res.Variant)
	fmt.Printf("events   %d raw, %d deduplicated, %d quarantined\n",
		len(raw), len(events), len(res.Quarantined))
	fmt.Println()

	for _, s := range res.Positions {
		fmt.Printf("%s:%d\n", s.MarketID, s.Outcome)
		fmt.Printf("  open %.4f @ %.4f  realized %.4f", s.OpenAmount, s.AvgPrice, s.RealizedPnl)
		if s.ResolvedUnrealizedValue != 0 {
			fmt.Printf("  resolved-unredeemed %.4f", s.ResolvedUnrealizedValue)
		}
		if s.UnrealizedKnown && s.OpenAmount > 0 && s.ResolvedUnrealizedValue == 0 {
			fmt.Printf("  unrealized %.4f", s.UnrealizedPnl)
		}
		fmt.Println()
	}

	fmt.Println()
	fmt.Printf("realized            %.4f\n", res.RealizedPnl)
	fmt.Printf("resolved-unredeemed %.4f\n", res.ResolvedUnrealized)
	if res.UnrealizedComplete {
		fmt.Printf("unrealized          %.4f\n", res.UnrealizedPnl)
	} else {
		fmt.Printf("unrealized          %.4f (incomplete: %d positions without marks)\n",
			res.UnrealizedPnl, res.Diagnostics.MissingMarks)
	}
	fmt.Printf("total               %.4f\n", res.TotalPnl(true, true))

	d := res.Diagnostics
	if d.ClampedSells > 0 || d.UnrecognizedIDs > 0 || d.UnpricedRedemptions > 0 {
		fmt.Println()
		fmt.Printf("diagnostics: clamped_sells=%d clamped_tokens=%.4f unrecognized_ids=%d unpriced_redemptions=%d\n",
			d.ClampedSells, d.ClampedTokens, d.UnrecognizedIDs, d.UnpricedRedemptions)
	}
}
