package observability_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksipredictor/ksipredictor/internal/observability"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	m.Predictions.WithLabelValues("direct", observability.OutcomeFatal).Inc()
	m.InsightsRequests.WithLabelValues("success").Inc()
	m.PredictionDuration.Observe(0.2)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ksi_predictor_predictions_total")
	assert.Contains(t, names, "ksi_predictor_insights_requests_total")
	assert.Contains(t, names, "ksi_predictor_prediction_duration_seconds")
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)
	assert.Panics(t, func() { observability.NewMetrics(reg) })
}

func TestDiscard_IsIndependent(t *testing.T) {
	a := observability.Discard()
	b := observability.Discard()

	a.SubmissionConflicts.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.SubmissionConflicts))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SubmissionConflicts))
}

func TestBreakerStateChanged(t *testing.T) {
	m := observability.Discard()

	m.BreakerStateChanged("prediction", gobreaker.StateClosed, gobreaker.StateOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamBreakerState.WithLabelValues("prediction")))

	m.BreakerStateChanged("prediction", gobreaker.StateOpen, gobreaker.StateHalfOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamBreakerState.WithLabelValues("prediction")))

	expected := `
# HELP ksi_predictor_upstream_breaker_state Circuit breaker state per upstream: 0 closed, 1 half-open, 2 open.
# TYPE ksi_predictor_upstream_breaker_state gauge
ksi_predictor_upstream_breaker_state{upstream="prediction"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.UpstreamBreakerState, strings.NewReader(expected)))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", observability.Outcome(nil))
	assert.Equal(t, "error", observability.Outcome(errors.New("x")))
}
