package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Pruner deletes history older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// PruneJob removes expired assessments.
type PruneJob struct {
	pruner Pruner
	config PruneConfig
	clock  clockwork.Clock
	logger zerolog.Logger

	metrics *PruneMetrics
}

// PruneMetrics tracks prune job statistics.
type PruneMetrics struct {
	mu sync.RWMutex

	TotalRuns    int64
	FailedRuns   int64
	TotalDeleted int64
	LastDeleted  int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
	LastError       string
}

// PruneJobConfig holds configuration for creating a PruneJob.
type PruneJobConfig struct {
	Config PruneConfig
	Pruner Pruner
	// Clock drives the schedule. Default: real clock
	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// NewPruneJob creates a prune job.
func NewPruneJob(cfg PruneJobConfig) *PruneJob {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PruneJob{
		pruner:  cfg.Pruner,
		config:  cfg.Config.withDefaults(),
		clock:   clock,
		logger:  cfg.Logger,
		metrics: &PruneMetrics{},
	}
}

// PruneResult contains the result of one run.
type PruneResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Retention time.Duration
	Deleted   int64
	Err       error
}

// Run prunes once. A zero retention uses the configured one.
func (j *PruneJob) Run(ctx context.Context, retention time.Duration) *PruneResult {
	if retention <= 0 {
		retention = j.config.Retention
	}

	result := &PruneResult{
		StartTime: j.clock.Now(),
		Retention: retention,
	}

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result.Deleted, result.Err = j.pruner.Prune(runCtx, retention)
	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.updateMetrics(result)

	if result.Err != nil {
		j.logger.Error().Err(result.Err).Dur("retention", retention).Msg("history prune failed")
		return result
	}
	j.logger.Info().
		Dur("retention", retention).
		Int64("deleted", result.Deleted).
		Dur("duration", result.Duration).
		Msg("history prune completed")
	return result
}

// Schedule runs the job once immediately and then every Interval until ctx
// is done. It returns at once when Interval is zero.
func (j *PruneJob) Schedule(ctx context.Context) {
	if j.config.Interval <= 0 {
		return
	}

	j.logger.Info().Dur("interval", j.config.Interval).Msg("history prune scheduled")
	j.Run(ctx, 0)

	ticker := j.clock.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			j.Run(ctx, 0)
		}
	}
}

func (j *PruneJob) updateMetrics(result *PruneResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
	if result.Err != nil {
		j.metrics.FailedRuns++
		j.metrics.LastError = result.Err.Error()
		return
	}
	j.metrics.LastDeleted = result.Deleted
	j.metrics.TotalDeleted += result.Deleted
	j.metrics.LastError = ""
}

// GetMetrics returns a copy of the current metrics.
func (j *PruneJob) GetMetrics() PruneMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PruneMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		FailedRuns:      j.metrics.FailedRuns,
		TotalDeleted:    j.metrics.TotalDeleted,
		LastDeleted:     j.metrics.LastDeleted,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
		LastError:       j.metrics.LastError,
	}
}

// MetricsSnapshot returns the current metrics as a map for the health
// endpoint.
func (j *PruneJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"failed_runs":       m.FailedRuns,
		"total_deleted":     m.TotalDeleted,
		"last_deleted":      m.LastDeleted,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
		"last_error":        m.LastError,
	}
}
