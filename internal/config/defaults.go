package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRefreshInterval    = 5 * time.Minute
	DefaultCacheTTL           = 30 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultHarnessConcurrency = 8
	DefaultOutcomeCount       = 2
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *ReconcilerConfig) applyDefaults() {
	// Valuation defaults
	if c.Valuation.Timeout == 0 {
		c.Valuation.Timeout = DefaultAPITimeout
	}
	if c.Valuation.MaxRetries == 0 {
		c.Valuation.MaxRetries = DefaultMaxRetries
	}
	if c.Valuation.RefreshInterval == 0 {
		c.Valuation.RefreshInterval = DefaultRefreshInterval
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Redis defaults
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = DefaultCacheTTL
	}

	// Harness defaults
	if c.Harness.Concurrency == 0 {
		c.Harness.Concurrency = DefaultHarnessConcurrency
	}
	if len(c.Harness.Variants) == 0 {
		c.Harness.Variants = []string{"weighted_average"}
	}
	if c.Harness.OutcomeCount == 0 {
		c.Harness.OutcomeCount = DefaultOutcomeCount
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
