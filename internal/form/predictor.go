package form

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ksipredictor/ksipredictor/internal/collision"
	"github.com/ksipredictor/ksipredictor/internal/history"
	"github.com/ksipredictor/ksipredictor/internal/observability"
	"github.com/ksipredictor/ksipredictor/internal/predict"
	"github.com/ksipredictor/ksipredictor/internal/telemetry"
)

// ErrSubmissionInFlight is returned when a session already has a
// submission running.
var ErrSubmissionInFlight = errors.New("a submission is already in progress")

const recordTimeout = 5 * time.Second

// Recorder receives every assessment that reached the model service.
type Recorder interface {
	Record(ctx context.Context, a history.Assessment) error
}

// Outcome is the result of assessing one record.
type Outcome struct {
	// Request is set once the record passed validation.
	Request *collision.PredictionRequest
	Result  *predict.Result
	// Presentation is meaningful only when Err is nil.
	Presentation predict.Presentation
	Err          error
}

// PredictorConfig holds dependencies for a Predictor.
type PredictorConfig struct {
	Client predict.Predictor
	// Recorder is optional. Failures are logged and never shown to the user.
	Recorder Recorder
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

// Predictor runs the submission pipeline: configuration check, validation,
// normalization, the prediction call and rendering. Nothing is retried.
type Predictor struct {
	client   predict.Predictor
	recorder Recorder
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewPredictor creates a Predictor.
func NewPredictor(cfg PredictorConfig) *Predictor {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.Discard()
	}
	return &Predictor{
		client:   cfg.Client,
		recorder: cfg.Recorder,
		metrics:  metrics,
		logger:   cfg.Logger,
	}
}

// Submit runs one submission for a session and returns the resulting
// snapshot. Only one submission per session may run at a time; a second
// call while one is running returns ErrSubmissionInFlight and changes
// nothing.
func (p *Predictor) Submit(ctx context.Context, s *Session) (Snapshot, error) {
	record, ok := s.store.beginSubmit()
	if !ok {
		p.metrics.SubmissionConflicts.Inc()
		return s.store.Get(), ErrSubmissionInFlight
	}

	out := p.Assess(ctx, record)
	snap := s.store.finishSubmit(out)

	p.metrics.Predictions.WithLabelValues(history.SourceSession, outcomeLabel(out)).Inc()
	p.record(ctx, history.SourceSession, s.ID, out)
	return snap, nil
}

// Evaluate assesses a record outside of any session.
func (p *Predictor) Evaluate(ctx context.Context, r collision.Record) Outcome {
	out := p.Assess(ctx, r)
	p.metrics.Predictions.WithLabelValues(history.SourceDirect, outcomeLabel(out)).Inc()
	p.record(ctx, history.SourceDirect, "", out)
	return out
}

// Assess runs the pipeline for one record without touching any session.
func (p *Predictor) Assess(ctx context.Context, r collision.Record) Outcome {
	if p.client == nil || !p.client.Configured() {
		return Outcome{Err: &predict.ConfigurationError{Message: predict.MsgNotConfigured}}
	}

	req, err := collision.Normalize(r)
	if err != nil {
		return Outcome{Err: err}
	}

	ctx, span := telemetry.StartSpan(ctx, "form.Assess", attribute.String("district", req.District))
	p.metrics.PredictionsInFlight.Inc()
	start := time.Now()
	result, err := p.client.Predict(ctx, req)
	p.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	p.metrics.PredictionsInFlight.Dec()
	telemetry.EndSpan(span, err)

	if err != nil {
		p.logger.Warn().Err(err).Msg("prediction failed")
		return Outcome{Request: &req, Err: err}
	}
	return Outcome{Request: &req, Result: result, Presentation: predict.Present(result)}
}

// record hands the outcome to the recorder when the model service was
// called. It runs on a context detached from the caller's cancellation.
func (p *Predictor) record(ctx context.Context, source, sessionID string, out Outcome) {
	if p.recorder == nil || out.Request == nil {
		return
	}

	a := history.Assessment{
		Source:    source,
		SessionID: sessionID,
		Request:   *out.Request,
	}
	if out.Err != nil {
		a.Error = predict.DisplayMessage(out.Err)
	} else {
		a.Label = out.Presentation.Label
		if prob, ok := out.Result.Probability(); ok {
			a.Probability = &prob
		}
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.recorder.Record(rctx, a); err != nil {
		p.logger.Error().Err(err).Str("source", source).Msg("failed to record assessment")
	}
}

func outcomeLabel(out Outcome) string {
	var (
		cfgErr   *predict.ConfigurationError
		valErr   *collision.ValidationError
		apiErr   *predict.APIError
		netErr   *predict.NetworkError
		parseErr *predict.ParseError
	)
	switch err := out.Err; {
	case err == nil && out.Presentation.Label == predict.LabelFatal:
		return observability.OutcomeFatal
	case err == nil:
		return observability.OutcomeNonFatal
	case errors.As(err, &cfgErr):
		return observability.OutcomeNotConfigured
	case errors.As(err, &valErr):
		return observability.OutcomeInvalid
	case errors.As(err, &apiErr):
		return observability.OutcomeAPIError
	case errors.As(err, &netErr):
		return observability.OutcomeNetworkError
	case errors.As(err, &parseErr):
		return observability.OutcomeParseError
	default:
		return "error"
	}
}
