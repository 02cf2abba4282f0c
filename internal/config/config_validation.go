package config

import (
	"fmt"

	"github.com/bazaarlabs/go-market-sync/models"
)

// applyDefaults fills every unset knob with its documented default. Empty
// DSNs stay empty ("in-memory") on purpose: that is a valid configuration
// for tests and throwaway runs.
func (c *StructuredConfig) applyDefaults() {
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = DefaultRequestTimeout
	}
	if c.Backend.ProbeInterval <= 0 {
		c.Backend.ProbeInterval = DefaultProbeInterval
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = DefaultBatchSize
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = DefaultSyncInterval
	}
	if c.Sync.MaxRetries <= 0 {
		c.Sync.MaxRetries = DefaultMaxRetries
	}
	if c.Sync.BaseDelay <= 0 {
		c.Sync.BaseDelay = DefaultBaseDelay
	}
	if c.Sync.MaxDelay <= 0 {
		c.Sync.MaxDelay = DefaultMaxDelay
	}
	if c.Sync.Strategy == "" {
		c.Sync.Strategy = string(models.StrategyLastWriteWins)
	}
	if len(c.Sync.EntityTypes) == 0 {
		c.Sync.EntityTypes = append([]string(nil), DefaultEntityTypes...)
	}
}

func (c *StructuredConfig) validate() error {
	switch models.ConflictStrategy(c.Sync.Strategy) {
	case models.StrategyLastWriteWins, models.StrategyClientWins,
		models.StrategyServerWins, models.StrategyManual:
	default:
		return fmt.Errorf("%w: unknown conflict strategy %q", ErrInvalidConfig, c.Sync.Strategy)
	}

	if c.Sync.MaxDelay < c.Sync.BaseDelay {
		return fmt.Errorf("%w: max delay %s below base delay %s",
			ErrInvalidConfig, c.Sync.MaxDelay, c.Sync.BaseDelay)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("%w: backend base URL is required", ErrInvalidConfig)
	}

	return nil
}
