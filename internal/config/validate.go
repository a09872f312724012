package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *ReconcilerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Harness.Concurrency < 1 {
		return errors.New("harness.concurrency must be >= 1")
	}
	if c.Harness.CasesPath == "" {
		return errors.New("harness.cases_path is required")
	}
	if c.Harness.OutcomeCount < 2 {
		return errors.New("harness.outcome_count must be >= 2")
	}

	if err := c.Tolerance.TradeOnly.validate("tolerance.trade_only"); err != nil {
		return err
	}
	if err := c.Tolerance.Lifecycle.validate("tolerance.lifecycle"); err != nil {
		return err
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// validate allows an all-zero rule (defaults apply) but rejects partial or
// negative ones.
func (r *CohortRule) validate(prefix string) error {
	if r.Threshold == 0 && r.RelativePct == 0 && r.AbsoluteAmount == 0 {
		return nil
	}
	if r.Threshold < 0 {
		return fmt.Errorf("%s.threshold must be >= 0", prefix)
	}
	if r.RelativePct <= 0 || r.RelativePct >= 1 {
		return fmt.Errorf("%s.relative_pct must be in (0, 1)", prefix)
	}
	if r.AbsoluteAmount <= 0 {
		return fmt.Errorf("%s.absolute_amount must be > 0", prefix)
	}
	return nil
}
