package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksipredictor/ksipredictor/internal/collision"
	"github.com/ksipredictor/ksipredictor/internal/events"
	"github.com/ksipredictor/ksipredictor/internal/history"
	"github.com/ksipredictor/ksipredictor/internal/worker"
)

func newProcessor(t *testing.T, pruner worker.Pruner) (*worker.Processor, *history.Service) {
	t.Helper()

	svc := history.NewService(history.ServiceConfig{Repository: history.NewInMemoryRepository()})
	var job *worker.PruneJob
	if pruner != nil {
		job = worker.NewPruneJob(worker.PruneJobConfig{Pruner: pruner, Logger: zerolog.Nop()})
	}
	return worker.NewProcessor(worker.ProcessorConfig{
		History:  svc,
		PruneJob: job,
		Logger:   zerolog.Nop(),
	}), svc
}

func TestProcessor_AssessmentRecorded(t *testing.T) {
	proc, svc := newProcessor(t, nil)
	ctx := context.Background()

	a := history.Assessment{
		ID:        "evt-1",
		Source:    history.SourceSession,
		SessionID: "s-1",
		Request:   collision.PredictionRequest{Date: "2023-10-26", Time: "0830"},
		Label:     "Non-Fatal Injury",
		CreatedAt: time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC),
	}
	data, err := events.NewAssessmentRecorded(a).Encode()
	require.NoError(t, err)

	require.NoError(t, proc.Process(ctx, data))
	// Redelivery is harmless.
	require.NoError(t, proc.Process(ctx, data))

	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "evt-1", recent[0].ID)
	assert.Equal(t, "s-1", recent[0].SessionID)
}

func TestProcessor_Malformed(t *testing.T) {
	proc, _ := newProcessor(t, nil)

	err := proc.Process(context.Background(), []byte(`{"type":`))
	assert.ErrorIs(t, err, worker.ErrMalformed)

	err = proc.Process(context.Background(), []byte(`{"type":"assessment_recorded"}`))
	assert.ErrorIs(t, err, worker.ErrMalformed)
}

func TestProcessor_UnknownTypeIsAcked(t *testing.T) {
	proc, _ := newProcessor(t, nil)
	assert.NoError(t, proc.Process(context.Background(), []byte(`{"type":"provider_refresh"}`)))
}

func TestProcessor_Prune(t *testing.T) {
	pruner := &fakePruner{deleted: 2}
	proc, _ := newProcessor(t, pruner)

	require.NoError(t, proc.Process(context.Background(), []byte(`{"type":"history_prune","retention_days":7}`)))
	require.NoError(t, proc.Process(context.Background(), []byte(`{"type":"history_prune"}`)))

	assert.Equal(t, []time.Duration{7 * 24 * time.Hour, worker.DefaultPruneConfig().Retention}, pruner.calls())
}

func TestProcessor_PruneFailureNacks(t *testing.T) {
	fail := errors.New("timeout")
	proc, _ := newProcessor(t, &fakePruner{err: fail})

	err := proc.Process(context.Background(), []byte(`{"type":"history_prune"}`))
	assert.ErrorIs(t, err, fail)
	assert.NotErrorIs(t, err, worker.ErrMalformed)
}

func TestProcessor_PruneNotConfigured(t *testing.T) {
	proc, _ := newProcessor(t, nil)
	assert.NoError(t, proc.Process(context.Background(), []byte(`{"type":"history_prune"}`)))
}
