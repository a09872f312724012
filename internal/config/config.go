// Package config loads and validates YAML configuration for the
// reconciler and its supporting commands.
package config

import "time"

// ReconcilerConfig is the root configuration for a reconciler instance.
type ReconcilerConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Database  DBConfig        `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Valuation ValuationConfig `yaml:"valuation"`
	Harness   HarnessConfig   `yaml:"harness"`
	Tolerance ToleranceConfig `yaml:"tolerance"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this reconciler.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// DBConfig holds the postgres connection for the event log and run records.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the optional mark-price cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ValuationConfig holds resolution and mark-price sourcing settings.
type ValuationConfig struct {
	RestURL         string        `yaml:"rest_url"`
	WSURL           string        `yaml:"ws_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// NeutralFallback enables the 0.5 default mark for markets with no
	// trade data at all. Off unless explicitly requested.
	NeutralFallback bool `yaml:"neutral_fallback"`
}

// HarnessConfig holds reconciliation run settings.
type HarnessConfig struct {
	Concurrency int      `yaml:"concurrency"`
	Variants    []string `yaml:"variants"`
	CasesPath   string   `yaml:"cases_path"`
	// From and To bound the event fetch, µs since epoch. Zero To means now.
	From int64 `yaml:"from"`
	To   int64 `yaml:"to"`
	// OutcomeCount is the per-market outcome count for split/merge pricing.
	OutcomeCount int `yaml:"outcome_count"`
}

// ToleranceConfig holds per-cohort tolerance rules. Zero-valued cohorts
// fall back to the documented defaults.
type ToleranceConfig struct {
	TradeOnly CohortRule `yaml:"trade_only"`
	Lifecycle CohortRule `yaml:"lifecycle"`
}

// CohortRule mirrors reconcile.ToleranceRule in YAML form.
type CohortRule struct {
	Threshold      float64 `yaml:"threshold"`
	RelativePct    float64 `yaml:"relative_pct"`
	AbsoluteAmount float64 `yaml:"absolute_amount"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
