package reconcile

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkorzen/poly-pnl/internal/ingest"
	"github.com/mkorzen/poly-pnl/internal/ledger"
	"github.com/mkorzen/poly-pnl/internal/model"
	"github.com/mkorzen/poly-pnl/internal/valuation"
)

// EventSource supplies a wallet's raw (not yet deduplicated) events.
// *ingest.EventStore satisfies this.
type EventSource interface {
	FetchWalletEvents(ctx context.Context, wallet string, from, to int64) ([]model.RawEvent, error)
}

// Config holds harness settings.
type Config struct {
	// Concurrency caps the number of wallets processed in parallel.
	Concurrency int
	// Variants lists the engine variants to run side by side. The first
	// entry is the canonical one.
	Variants []ledger.Variant
	// Rules maps cohorts to tolerance rules.
	Rules RuleSet
	// From and To bound the event fetch, µs since epoch. Zero To means now.
	From int64
	To   int64
	// Engine is passed through to every variant.
	Engine ledger.Config
}

func (c *Config) applyDefaults() {
	if c.Concurrency < 1 {
		c.Concurrency = 8
	}
	if len(c.Variants) == 0 {
		c.Variants = []ledger.Variant{ledger.VariantWeightedAverage}
	}
	if c.Rules == nil {
		c.Rules = DefaultRules()
	}
	if c.To == 0 {
		c.To = time.Now().UnixMicro()
	}
}

// Harness runs a validation dataset through the full pipeline and scores
// every wallet. Wallets are independent, so they run concurrently; one
// wallet's failure never aborts the batch.
type Harness struct {
	cfg     Config
	events  EventSource
	engines []*ledger.Engine
	logger  *slog.Logger
}

// New creates a harness. One engine per configured variant, all sharing
// the resolver and mark source read-only.
func New(cfg Config, events EventSource, resolver valuation.Resolver, marks valuation.MarkSource, logger *slog.Logger) *Harness {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	engines := make([]*ledger.Engine, 0, len(cfg.Variants))
	for _, v := range cfg.Variants {
		engines = append(engines, ledger.New(cfg.Engine, v, resolver, marks, logger))
	}
	return &Harness{
		cfg:     cfg,
		events:  events,
		engines: engines,
		logger:  logger,
	}
}

// Run executes the dataset and returns the scored report.
//
// Cancellation is clean: wallets finish or never start, so a cancelled run
// returns the completed outcomes alongside the context error.
func (h *Harness) Run(ctx context.Context, dataset *Dataset) (*Report, error) {
	report := &Report{
		RunID:          uuid.New(),
		DatasetVersion: dataset.Version,
		StartedAt:      time.Now().UTC(),
	}

	// One slot per (case, variant); goroutines write disjoint slots.
	slots := make([]WalletOutcome, len(dataset.Cases)*len(h.engines))

	var fetched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Concurrency)
	for i, vc := range dataset.Cases {
		base := i * len(h.engines)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fetched.Add(h.runWallet(gctx, vc, slots[base:base+len(h.engines)]))
			return nil
		})
	}
	err := g.Wait()
	report.EventsFetched = fetched.Load()

	// Keep only slots that actually ran; cancellation leaves gaps.
	for _, o := range slots {
		if o.Wallet != "" {
			report.Outcomes = append(report.Outcomes, o)
		}
	}
	report.FinishedAt = time.Now().UTC()
	report.finalize()

	if err != nil {
		h.logger.Warn("reconciliation run interrupted",
			"run_id", report.RunID, "completed", len(report.Outcomes), "error", err)
		return report, err
	}
	h.logger.Info("reconciliation run complete",
		"run_id", report.RunID,
		"wallets", len(dataset.Cases),
		"outcomes", len(report.Outcomes))
	return report, nil
}

// runWallet fetches, dedups, and scores one wallet under every variant,
// writing one outcome per variant into out. Errors stay in the outcome.
// Returns the number of raw events fetched.
func (h *Harness) runWallet(ctx context.Context, vc model.ValidationCase, out []WalletOutcome) int64 {
	for i, eng := range h.engines {
		out[i] = WalletOutcome{
			Wallet:   vc.Wallet,
			Cohort:   vc.Cohort,
			Variant:  eng.Variant(),
			TruthPnl: vc.TruthPnl,
		}
	}

	raw, err := h.events.FetchWalletEvents(ctx, vc.Wallet, h.cfg.From, h.cfg.To)
	if err != nil {
		h.fail(out, "fetch events: "+err.Error())
		return 0
	}
	events, err := ingest.Deduplicate(raw)
	if err != nil {
		// DataIntegrityError: an upstream ingestion defect, isolated to
		// this wallet and surfaced verbatim.
		h.fail(out, err.Error())
		return int64(len(raw))
	}

	rule, ok := h.cfg.Rules[vc.Cohort]
	if !ok {
		h.fail(out, "no tolerance rule for cohort "+string(vc.Cohort))
		return int64(len(raw))
	}

	for i, eng := range h.engines {
		res, err := eng.ProcessWallet(ctx, vc.Wallet, events)
		if err != nil {
			out[i].Err = err.Error()
			continue
		}
		h.score(&out[i], vc, rule, res)
	}
	return int64(len(raw))
}

func (h *Harness) fail(out []WalletOutcome, msg string) {
	for i := range out {
		out[i].Err = msg
	}
}

// candidate is one PnL composition to score against truth.
type candidate struct {
	value            float64
	convention       model.OracleConvention
	includedResolved bool
}

// score evaluates every convention the oracle might have used and keeps
// the best. The oracle is inconsistent about both unrealized inclusion and
// resolved-unredeemed value, so an unknown-convention case tries all four
// compositions; a labeled case only varies the resolved term.
func (h *Harness) score(out *WalletOutcome, vc model.ValidationCase, rule ToleranceRule, res *ledger.WalletResult) {
	out.Diagnostics = res.Diagnostics

	var cands []candidate
	add := func(conv model.OracleConvention, unrealized bool) {
		cands = append(cands,
			candidate{res.TotalPnl(false, unrealized), conv, false},
			candidate{res.TotalPnl(true, unrealized), conv, true},
		)
	}
	switch vc.Convention {
	case model.ConventionRealized:
		add(model.ConventionRealized, false)
	case model.ConventionTotal:
		add(model.ConventionTotal, true)
	default:
		add(model.ConventionRealized, false)
		add(model.ConventionTotal, true)
	}

	best := -1
	for i, c := range cands {
		v := rule.Evaluate(vc.TruthPnl, c.value)
		if v.Pass {
			best = i
			break
		}
		if best < 0 || v.AbsError < math.Abs(cands[best].value-vc.TruthPnl) {
			best = i
		}
	}

	chosen := cands[best]
	out.EnginePnl = chosen.value
	out.ConventionUsed = chosen.convention
	out.IncludedResolved = chosen.includedResolved
	out.Verdict = rule.Evaluate(vc.TruthPnl, chosen.value)

	if !out.Verdict.Pass {
		unrealized := chosen.convention == model.ConventionTotal
		out.RootCause = classifyFailure(res.Diagnostics, vc.TruthPnl,
			res.TotalPnl(true, unrealized), res.TotalPnl(false, unrealized))
		h.logger.Warn("wallet failed reconciliation",
			"wallet", vc.Wallet,
			"variant", out.Variant,
			"cohort", vc.Cohort,
			"truth", vc.TruthPnl,
			"computed", out.EnginePnl,
			"abs_error", out.Verdict.AbsError,
			"root_cause", out.RootCause)
	}
}
