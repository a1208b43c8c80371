package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksipredictor/ksipredictor/internal/worker"
)

type fakePruner struct {
	mu         sync.Mutex
	retentions []time.Duration
	deleted    int64
	err        error
}

func (f *fakePruner) Prune(_ context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retentions = append(f.retentions, retention)
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func (f *fakePruner) calls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.retentions...)
}

func TestDefaultPruneConfig(t *testing.T) {
	cfg := worker.DefaultPruneConfig()

	assert.Equal(t, 90*24*time.Hour, cfg.Retention)
	assert.Equal(t, 24*time.Hour, cfg.Interval)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestPruneJob_Run(t *testing.T) {
	pruner := &fakePruner{deleted: 4}
	job := worker.NewPruneJob(worker.PruneJobConfig{
		Config: worker.PruneConfig{Retention: 48 * time.Hour},
		Pruner: pruner,
		Logger: zerolog.Nop(),
	})

	result := job.Run(context.Background(), 0)
	require.NoError(t, result.Err)
	assert.Equal(t, int64(4), result.Deleted)
	assert.Equal(t, 48*time.Hour, result.Retention)

	result = job.Run(context.Background(), time.Hour)
	require.NoError(t, result.Err)
	assert.Equal(t, []time.Duration{48 * time.Hour, time.Hour}, pruner.calls())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalRuns)
	assert.Equal(t, int64(8), metrics.TotalDeleted)
	assert.Equal(t, int64(4), metrics.LastDeleted)
	assert.Zero(t, metrics.FailedRuns)
	assert.NotZero(t, metrics.LastRunAt)
}

func TestPruneJob_RunFailure(t *testing.T) {
	pruner := &fakePruner{err: errors.New("database is locked")}
	job := worker.NewPruneJob(worker.PruneJobConfig{Pruner: pruner, Logger: zerolog.Nop()})

	result := job.Run(context.Background(), 0)
	require.Error(t, result.Err)
	assert.Equal(t, worker.DefaultPruneConfig().Retention, result.Retention)

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.FailedRuns)
	assert.Equal(t, "database is locked", metrics.LastError)
}

func TestPruneJob_MetricsSnapshot(t *testing.T) {
	job := worker.NewPruneJob(worker.PruneJobConfig{Pruner: &fakePruner{}, Logger: zerolog.Nop()})
	_ = job.Run(context.Background(), 0)

	snapshot := job.MetricsSnapshot()

	assert.Contains(t, snapshot, "total_runs")
	assert.Contains(t, snapshot, "failed_runs")
	assert.Contains(t, snapshot, "total_deleted")
	assert.Contains(t, snapshot, "last_run_at")
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestPruneJob_Schedule(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pruner := &fakePruner{}
	job := worker.NewPruneJob(worker.PruneJobConfig{
		Config: worker.PruneConfig{Interval: time.Hour},
		Pruner: pruner,
		Clock:  clock,
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Schedule(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Len(t, pruner.calls(), 1)

	clock.Advance(time.Hour)
	assert.Eventually(t, func() bool { return len(pruner.calls()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule did not return after cancel")
	}
}

func TestPruneJob_ScheduleDisabled(t *testing.T) {
	pruner := &fakePruner{}
	job := worker.NewPruneJob(worker.PruneJobConfig{Pruner: pruner, Logger: zerolog.Nop()})

	job.Schedule(context.Background())
	assert.Empty(t, pruner.calls())
}
