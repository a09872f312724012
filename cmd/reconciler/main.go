package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkorzen/poly-pnl/internal/config"
	"github.com/mkorzen/poly-pnl/internal/database"
	"github.com/mkorzen/poly-pnl/internal/ingest"
	"github.com/mkorzen/poly-pnl/internal/ledger"
	"github.com/mkorzen/poly-pnl/internal/metrics"
	"github.com/mkorzen/poly-pnl/internal/model"
	"github.com/mkorzen/poly-pnl/internal/reconcile"
	"github.com/mkorzen/poly-pnl/internal/valuation"
	"github.com/mkorzen/poly-pnl/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/reconciler.local.yaml", "path to config file")
	casesPath := flag.String("cases", "", "override harness.cases_path from config")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting reconciler",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *casesPath != "" {
		cfg.Harness.CasesPath = *casesPath
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"cases", cfg.Harness.CasesPath,
		"variants", cfg.Harness.Variants,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load the validation dataset before touching any infrastructure.
	dataset, err := reconcile.LoadDataset(cfg.Harness.CasesPath)
	if err != nil {
		logger.Error("failed to load validation dataset", "error", err)
		os.Exit(1)
	}
	logger.Info("validation dataset loaded",
		"version", dataset.Version,
		"cases", len(dataset.Cases),
	)

	variants, err := parseVariants(cfg.Harness.Variants)
	if err != nil {
		logger.Error("invalid engine variant", "error", err)
		os.Exit(1)
	}

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Metrics and health server
	m := metrics.New(logger)
	m.Serve(cfg.Metrics.Port, cfg.Metrics.Path)

	// Resolution source: REST registry when configured, else the local
	// resolutions table.
	var resolver valuation.Resolver
	if cfg.Valuation.RestURL != "" {
		client := valuation.NewClient(cfg.Valuation.RestURL, "",
			valuation.WithLogger(logger),
			valuation.WithTimeout(cfg.Valuation.Timeout),
			valuation.WithRetries(cfg.Valuation.MaxRetries, time.Second),
		)
		registry := valuation.NewRegistry(valuation.RegistryConfig{
			RefreshInterval: cfg.Valuation.RefreshInterval,
		}, client, logger)
		if err := registry.Start(ctx); err != nil {
			logger.Error("failed to start resolution registry", "error", err)
			os.Exit(1)
		}
		defer registry.Stop()
		logger.Info("resolution registry started", "resolutions", registry.Size())
		resolver = registry
	} else {
		resolver = valuation.NewResolutionStore(pool)
	}

	// Mark source: last-trade prices from the DB, fronted by the live feed
	// when configured and optionally by a redis cache.
	var marks valuation.MarkSource = valuation.NewTradeMarks(pool, cfg.Valuation.NeutralFallback)
	if cfg.Valuation.WSURL != "" {
		table := valuation.NewMarkTable()
		feed := valuation.NewTradeFeed(valuation.DefaultFeedConfig(cfg.Valuation.WSURL), table, logger)
		feed.Start(ctx)
		defer feed.Stop()
		marks = valuation.NewTiered(table, marks)
		logger.Info("trade feed enabled", "url", cfg.Valuation.WSURL)
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		marks = valuation.NewMarkCache(marks, rdb, cfg.Redis.CacheTTL, logger)
		logger.Info("mark cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	harness := reconcile.New(reconcile.Config{
		Concurrency: cfg.Harness.Concurrency,
		Variants:    variants,
		Rules:       rulesFromConfig(cfg.Tolerance),
		From:        cfg.Harness.From,
		To:          cfg.Harness.To,
		Engine:      ledger.Config{OutcomeCount: cfg.Harness.OutcomeCount},
	}, ingest.NewEventStore(pool), resolver, marks, logger)

	start := time.Now()
	report, runErr := harness.Run(ctx, dataset)
	m.ObserveRun(time.Since(start), dataset.Version)
	recordOutcomes(m, report)

	if err := reconcile.NewRunStore(pool).SaveReport(context.Background(), report); err != nil {
		logger.Error("failed to persist run record", "run_id", report.RunID, "error", err)
	}

	for cohort, stats := range report.ByCohort {
		logger.Info("cohort result",
			"run_id", report.RunID,
			"cohort", cohort,
			"total", stats.Total,
			"passed", stats.Passed,
			"failed", stats.Failed,
			"errored", stats.Errored,
			"pass_rate", stats.PassRate,
		)
	}

	switch {
	case runErr != nil:
		logger.Error("reconciliation run interrupted", "run_id", report.RunID, "error", runErr)
		os.Exit(1)
	case !report.Passed():
		logger.Error("reconciliation run failed", "run_id", report.RunID)
		os.Exit(1)
	}
	logger.Info("reconciliation run passed", "run_id", report.RunID)
}

func parseVariants(names []string) ([]ledger.Variant, error) {
	variants := make([]ledger.Variant, 0, len(names))
	for _, name := range names {
		v, err := ledger.ParseVariant(name)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// rulesFromConfig merges configured per-cohort rules over the defaults.
func rulesFromConfig(tc config.ToleranceConfig) reconcile.RuleSet {
	rules := reconcile.DefaultRules()
	if r := tc.TradeOnly; r != (config.CohortRule{}) {
		rules[model.CohortTradeOnly] = reconcile.ToleranceRule{
			Threshold:      r.Threshold,
			RelativePct:    r.RelativePct,
			AbsoluteAmount: r.AbsoluteAmount,
		}
	}
	if r := tc.Lifecycle; r != (config.CohortRule{}) {
		rules[model.CohortLifecycle] = reconcile.ToleranceRule{
			Threshold:      r.Threshold,
			RelativePct:    r.RelativePct,
			AbsoluteAmount: r.AbsoluteAmount,
		}
	}
	return rules
}

func recordOutcomes(m *metrics.Metrics, report *reconcile.Report) {
	m.EventsFetched.Add(float64(report.EventsFetched))
	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		switch {
		case o.Err != "":
			m.WalletsProcessed.WithLabelValues("errored").Inc()
		case o.Verdict.Pass:
			m.WalletsProcessed.WithLabelValues("passed").Inc()
		default:
			m.WalletsProcessed.WithLabelValues("failed").Inc()
			m.Failures.WithLabelValues(string(o.Cohort), string(o.RootCause)).Inc()
		}
	}
	for cohort, stats := range report.ByCohort {
		m.PassRate.WithLabelValues(string(cohort)).Set(stats.PassRate)
	}
}
