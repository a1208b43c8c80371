package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/events"
	"github.com/ksipredictor/ksipredictor/internal/observability"
)

// ErrMalformed marks a message that can never be processed. Such messages
// are acked and dropped.
var ErrMalformed = errors.New("malformed message")

// Processor handles decoded event bodies.
type Processor struct {
	history  events.Recorder
	pruneJob *PruneJob
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// ProcessorConfig holds dependencies for a Processor.
type ProcessorConfig struct {
	History  events.Recorder
	PruneJob *PruneJob
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.Discard()
	}
	return &Processor{
		history:  cfg.History,
		pruneJob: cfg.PruneJob,
		metrics:  metrics,
		logger:   cfg.Logger,
	}
}

// Process handles one message body. A nil error means the message should be
// acked. Unknown event types are logged and acked.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	env, err := events.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case events.TypeAssessmentRecorded:
		return p.history.Record(ctx, *env.Assessment)
	case events.TypeHistoryPrune:
		return p.handlePrune(ctx, env)
	default:
		p.logger.Warn().Str("type", env.Type).Msg("unknown event type")
		return nil
	}
}

func (p *Processor) handlePrune(ctx context.Context, env events.Envelope) error {
	if p.pruneJob == nil {
		p.logger.Warn().Msg("history_prune received but pruning is not configured")
		return nil
	}
	retention := time.Duration(env.RetentionDays) * 24 * time.Hour
	return p.pruneJob.Run(ctx, retention).Err
}

// PubSubHandler receives assessment events from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start blocks processing Pub/Sub messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Str("type", msg.Attributes[events.AttrType]).
		Logger()

	err := h.processor.Process(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrMalformed):
		logger.Error().Err(err).Msg("dropping malformed message")
		h.processor.metrics.EventsConsumed.WithLabelValues("dropped").Inc()
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("event failed")
		h.processor.metrics.EventsConsumed.WithLabelValues("nack").Inc()
		msg.Nack()
	default:
		logger.Debug().Dur("duration", time.Since(startTime)).Msg("event processed")
		h.processor.metrics.EventsConsumed.WithLabelValues("ack").Inc()
		msg.Ack()
	}
}
