// Package observability holds the Prometheus metrics for the prediction
// workflow.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

const namespace = "ksi_predictor"

// Prediction outcome labels.
const (
	OutcomeFatal         = "fatal"
	OutcomeNonFatal      = "non_fatal"
	OutcomeInvalid       = "validation_error"
	OutcomeNotConfigured = "config_error"
	OutcomeAPIError      = "api_error"
	OutcomeNetworkError  = "network_error"
	OutcomeParseError    = "parse_error"
)

// Metrics holds the counters, histograms and gauges exported on /metrics.
type Metrics struct {
	Predictions         *prometheus.CounterVec // labels: source={session,direct}, outcome
	PredictionDuration  prometheus.Histogram
	PredictionsInFlight prometheus.Gauge
	SubmissionConflicts prometheus.Counter

	ActiveSessions  prometheus.Gauge
	SessionsEvicted prometheus.Counter

	InsightsRequests *prometheus.CounterVec // labels: outcome={success,error}

	UpstreamBreakerState *prometheus.GaugeVec // labels: upstream; 0 closed, 1 half-open, 2 open

	AssessmentsRecorded *prometheus.CounterVec // labels: sink={store,pubsub}, outcome={success,error}
	EventsConsumed      *prometheus.CounterVec // labels: outcome={ack,nack,dropped}
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Prediction submissions by source and outcome.",
		}, []string{"source", "outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Round trip to the prediction service.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PredictionsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "predictions_in_flight",
			Help:      "Prediction calls currently waiting on the model service.",
		}),
		SubmissionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_conflicts_total",
			Help:      "Submissions rejected because the session already had one in flight.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open predictor sessions.",
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Predictor sessions closed for inactivity.",
		}),
		InsightsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_requests_total",
			Help:      "Collisions-by-region fetches by outcome.",
		}, []string{"outcome"}),
		UpstreamBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_breaker_state",
			Help:      "Circuit breaker state per upstream: 0 closed, 1 half-open, 2 open.",
		}, []string{"upstream"}),
		AssessmentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_recorded_total",
			Help:      "Assessment history writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_events_consumed_total",
			Help:      "Assessment events handled by the worker.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.Predictions,
		m.PredictionDuration,
		m.PredictionsInFlight,
		m.SubmissionConflicts,
		m.ActiveSessions,
		m.SessionsEvicted,
		m.InsightsRequests,
		m.UpstreamBreakerState,
		m.AssessmentsRecorded,
		m.EventsConsumed,
	)

	return m
}

// Discard creates Metrics on a private registry that is never exported.
func Discard() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// BreakerStateChanged is a resilience state-change hook that updates
// UpstreamBreakerState.
func (m *Metrics) BreakerStateChanged(name string, _, to gobreaker.State) {
	m.UpstreamBreakerState.WithLabelValues(name).Set(float64(to))
}

// Outcome returns "success" or "error".
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
