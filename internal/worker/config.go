// Package worker consumes assessment events into the history store and
// prunes old history on a schedule.
package worker

import (
	"time"
)

// PruneConfig holds configuration for the history retention job.
type PruneConfig struct {
	// Retention is how long assessments are kept.
	// Default: 90 days
	Retention time.Duration

	// Interval is the time between scheduled runs. Zero disables the
	// schedule; pruning then only happens on history_prune messages.
	// Default: 24 hours
	Interval time.Duration

	// Timeout bounds a single run.
	// Default: 1 minute
	Timeout time.Duration
}

// DefaultPruneConfig returns the default retention configuration.
func DefaultPruneConfig() PruneConfig {
	return PruneConfig{
		Retention: 90 * 24 * time.Hour,
		Interval:  24 * time.Hour,
		Timeout:   time.Minute,
	}
}

func (c PruneConfig) withDefaults() PruneConfig {
	d := DefaultPruneConfig()
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
