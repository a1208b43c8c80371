package events

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/history"
	"github.com/ksipredictor/ksipredictor/internal/observability"
)

// Sink labels for the assessments_recorded metric.
const (
	SinkPubSub = "pubsub"
	SinkStore  = "store"
)

// Recorder receives finished assessments.
type Recorder interface {
	Record(ctx context.Context, a history.Assessment) error
}

// PublisherConfig holds configuration for the Pub/Sub publisher.
type PublisherConfig struct {
	ProjectID string
	Topic     string
	// Clock stamps CreatedAt before publishing. Default: real clock
	Clock   clockwork.Clock
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Publisher publishes assessments to a Pub/Sub topic. It satisfies the
// predictor's recorder so the API never writes to the history store
// directly when Pub/Sub is configured.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewPublisher connects to Pub/Sub.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.Discard()
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		clock:     clock,
		metrics:   metrics,
		logger:    cfg.Logger,
	}, nil
}

// Record publishes the assessment and waits for the server to accept it.
func (p *Publisher) Record(ctx context.Context, a history.Assessment) error {
	history.Stamp(&a, p.clock)

	data, err := NewAssessmentRecorded(a).Encode()
	if err != nil {
		return err
	}

	res := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{AttrType: TypeAssessmentRecorded},
	})
	serverID, err := res.Get(ctx)
	p.metrics.AssessmentsRecorded.WithLabelValues(SinkPubSub, observability.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("publish assessment %s to %s: %w", a.ID, p.topic, err)
	}

	p.logger.Debug().
		Str("assessment_id", a.ID).
		Str("message_id", serverID).
		Msg("assessment published")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// StoreRecorder records straight into a history store. Used when Pub/Sub is
// not configured.
type StoreRecorder struct {
	store   Recorder
	metrics *observability.Metrics
}

// NewStoreRecorder wraps store with the assessments_recorded metric.
func NewStoreRecorder(store Recorder, metrics *observability.Metrics) *StoreRecorder {
	if metrics == nil {
		metrics = observability.Discard()
	}
	return &StoreRecorder{store: store, metrics: metrics}
}

// Record saves the assessment.
func (r *StoreRecorder) Record(ctx context.Context, a history.Assessment) error {
	err := r.store.Record(ctx, a)
	r.metrics.AssessmentsRecorded.WithLabelValues(SinkStore, observability.Outcome(err)).Inc()
	return err
}
