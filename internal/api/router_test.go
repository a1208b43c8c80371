package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksipredictor/ksipredictor/internal/api"
	"github.com/ksipredictor/ksipredictor/internal/api/handler"
	"github.com/ksipredictor/ksipredictor/internal/api/models"
	"github.com/ksipredictor/ksipredictor/internal/auth"
	"github.com/ksipredictor/ksipredictor/internal/collision"
	"github.com/ksipredictor/ksipredictor/internal/events"
	"github.com/ksipredictor/ksipredictor/internal/form"
	"github.com/ksipredictor/ksipredictor/internal/history"
	"github.com/ksipredictor/ksipredictor/internal/insights"
	"github.com/ksipredictor/ksipredictor/internal/observability"
	"github.com/ksipredictor/ksipredictor/internal/predict"
	"github.com/ksipredictor/ksipredictor/internal/provider/resilience"
)

const testSigningKey = "test-secret-key-for-testing-only"

// testEnv is a router wired to fake upstream services.
type testEnv struct {
	router       http.Handler
	predictCalls atomic.Int32
	lastBatch    []map[string]interface{}
	history      *history.Service
	jwt          *auth.JWTService
}

type envOptions struct {
	predictHandler  http.HandlerFunc
	insightsHandler http.HandlerFunc
	noPredictURL    bool
	noInsightsURL   bool
	mapsAPIKey      string
	checks          map[string]handler.Check
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	env := &testEnv{}

	predictHandler := opts.predictHandler
	if predictHandler == nil {
		predictHandler = func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&env.lastBatch)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"prediction":[1],"prediction_proba_fatal":[0.823]}`))
		}
	}
	predictSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.predictCalls.Add(1)
		predictHandler(w, r)
	}))
	t.Cleanup(predictSrv.Close)

	insightsHandler := opts.insightsHandler
	if insightsHandler == nil {
		insightsHandler = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"DISTRICT":"Toronto and East York","collision_count":1532},{"DISTRICT":"Etobicoke York","collision_count":998}]`))
		}
	}
	insightsSrv := httptest.NewServer(insightsHandler)
	t.Cleanup(insightsSrv.Close)

	predictURL := predictSrv.URL + "/predict"
	if opts.noPredictURL {
		predictURL = ""
	}
	insightsURL := insightsSrv.URL
	if opts.noInsightsURL {
		insightsURL = ""
	}

	logger := zerolog.New(io.Discard)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	registry := resilience.NewRegistry(nil)

	predictClient := predict.NewClient(predict.ClientConfig{URL: predictURL, Registry: registry, Logger: logger})
	insightsClient := insights.NewClient(insights.ClientConfig{BaseURL: insightsURL, Registry: registry, Metrics: metrics, Logger: logger})

	env.history = history.NewService(history.ServiceConfig{Repository: history.NewInMemoryRepository(), Logger: logger})
	env.jwt = auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey})

	sessions := form.NewManager(form.ManagerConfig{Metrics: metrics, Logger: logger})
	predictor := form.NewPredictor(form.PredictorConfig{
		Client:   predictClient,
		Recorder: events.NewStoreRecorder(env.history, metrics),
		Metrics:  metrics,
		Logger:   logger,
	})

	env.router = api.NewRouter(api.RouterConfig{
		Version:        "test",
		BuildTime:      "2024-01-01T00:00:00Z",
		Logger:         logger,
		Gatherer:       reg,
		TokenValidator: env.jwt,
		Sessions:       sessions,
		Predictor:      predictor,
		Insights:       insightsClient,
		History:        env.history,
		Registry:       registry,
		Checks:         opts.checks,
		Metadata: handler.MetadataConfig{
			MapsAPIKey:         opts.mapsAPIKey,
			PredictConfigured:  predictClient.Configured(),
			InsightsConfigured: insightsClient.Configured(),
		},
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) operatorToken(t *testing.T) string {
	t.Helper()
	token, _, err := e.jwt.GenerateOperatorToken("ops@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func validRecord() map[string]interface{} {
	return map[string]interface{}{
		"DATE":      "2023 - 10 - 26",
		"TIME":      "0830",
		"DISTRICT":  "Toronto and East York",
		"LATITUDE":  43.6532,
		"LONGITUDE": -79.3832,
		"SPEEDING":  true,
		"UI_ONLY":   "dropped",
	}
}

// sessionView mirrors models.Session with the record as a plain map.
type sessionView struct {
	SessionID    string                 `json:"sessionId"`
	Record       map[string]interface{} `json:"record"`
	Submitting   bool                   `json:"submitting"`
	Error        string                 `json:"error"`
	Presentation *predict.Presentation  `json:"presentation"`
	MapsNotice   string                 `json:"mapsNotice"`
}

func TestOpsEndpoints(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	t.Run("health", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/ops/health", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
		health := decode[models.Health](t, rec)
		assert.Equal(t, models.HealthStatusOK, health.Status)
		assert.Equal(t, "test", health.Details["version"])
	})

	t.Run("ready", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/ops/ready", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("status requires auth", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/ops/status", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("status lists upstreams", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/ops/status", nil, env.operatorToken(t))
		require.Equal(t, http.StatusOK, rec.Code)

		status := decode[models.SystemStatus](t, rec)
		assert.Equal(t, models.HealthStatusOK, status.Status)
		names := make([]string, 0, len(status.Providers))
		for _, p := range status.Providers {
			names = append(names, p.Provider)
			assert.Equal(t, "closed", p.BreakerState)
		}
		assert.ElementsMatch(t, []string{predict.ProviderName, insights.ProviderName}, names)
	})
}

func TestReadiness_FailingCheck(t *testing.T) {
	env := newTestEnv(t, envOptions{checks: map[string]handler.Check{
		"history-store": func(context.Context) error { return errors.New("connection refused") },
	}})

	rec := env.do(t, http.MethodGet, "/v1/ops/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusFail, health.Status)
	assert.Equal(t, "connection refused", health.Details["history-store"])

	rec = env.do(t, http.MethodGet, "/v1/ops/status", nil, env.operatorToken(t))
	assert.Equal(t, models.HealthStatusFail, decode[models.SystemStatus](t, rec).Status)
}

func TestMetadataEndpoints(t *testing.T) {
	t.Run("fields", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		rec := env.do(t, http.MethodGet, "/v1/metadata/fields", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Fields   []collision.Spec       `json:"fields"`
			Defaults map[string]interface{} `json:"defaults"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Fields, 30)
		assert.Equal(t, collision.FieldDate, body.Fields[0].Field)
		assert.Equal(t, "NO", body.Defaults["SPEEDING"])
	})

	t.Run("client config without maps key", func(t *testing.T) {
		env := newTestEnv(t, envOptions{noInsightsURL: true})
		rec := env.do(t, http.MethodGet, "/v1/metadata/client-config", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		cfg := decode[models.ClientConfig](t, rec)
		assert.False(t, cfg.Map.Enabled)
		assert.Empty(t, cfg.Map.APIKey)
		assert.Equal(t, handler.MapsDisabledNotice, cfg.Map.Notice)
		assert.Equal(t, models.LatLng{Lat: 43.6532, Lng: -79.3832}, cfg.Map.Center)
		assert.Equal(t, 11, cfg.Map.Zoom)
		assert.True(t, cfg.PredictConfigured)
		assert.False(t, cfg.InsightsConfigured)
	})

	t.Run("client config with maps key", func(t *testing.T) {
		env := newTestEnv(t, envOptions{mapsAPIKey: "maps-key"})
		cfg := decode[models.ClientConfig](t, env.do(t, http.MethodGet, "/v1/metadata/client-config", nil, ""))
		assert.True(t, cfg.Map.Enabled)
		assert.Equal(t, "maps-key", cfg.Map.APIKey)
		assert.Empty(t, cfg.Map.Notice)
	})
}

func TestPredictorSession_Flow(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodPost, "/v1/predictor/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decode[sessionView](t, rec)
	require.NotEmpty(t, session.SessionID)
	base := "/v1/predictor/sessions/" + session.SessionID
	assert.Equal(t, base, rec.Header().Get("Location"))
	assert.Equal(t, handler.MapsDisabledNotice, session.MapsNotice)
	assert.Equal(t, "NO", session.Record["SPEEDING"])

	edits := []models.FieldUpdateRequest{
		{Field: "DATE", Value: ptr("2023-10-26")},
		{Field: "TIME", Value: ptr("0830")},
		{Field: "DISTRICT", Value: ptr("Scarborough")},
	}
	for _, edit := range edits {
		rec = env.do(t, http.MethodPatch, base+"/fields", edit, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decode[models.FieldUpdateResponse](t, rec).Accepted)
	}

	rec = env.do(t, http.MethodPatch, base+"/fields", models.FieldUpdateRequest{Field: "SPEEDING", Checked: ptr(true)}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled struct {
		Accepted bool        `json:"accepted"`
		Session  sessionView `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.Equal(t, "YES", toggled.Session.Record["SPEEDING"])

	rec = env.do(t, http.MethodPut, base+"/location", models.LocationRequest{Lat: ptr(43.7), Lng: ptr(-79.4)}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 43.7, decode[sessionView](t, rec).Record["LATITUDE"])

	// Letters in a coordinate are refused without touching the record.
	rec = env.do(t, http.MethodPatch, base+"/fields", models.FieldUpdateRequest{Field: "LATITUDE", Value: ptr("4a")}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.False(t, toggled.Accepted)
	assert.Equal(t, 43.7, toggled.Session.Record["LATITUDE"])

	rec = env.do(t, http.MethodPost, base+"/submit", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[sessionView](t, rec)
	assert.False(t, result.Submitting)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Presentation)
	assert.Equal(t, predict.LabelFatal, result.Presentation.Label)
	assert.Equal(t, "82.30%", result.Presentation.PercentText)

	require.Len(t, env.lastBatch, 1)
	assert.Equal(t, "2023-10-26", env.lastBatch[0]["DATE"])
	assert.Equal(t, 43.7, env.lastBatch[0]["LATITUDE"])
	assert.Equal(t, "YES", env.lastBatch[0]["SPEEDING"])

	recent, err := env.history.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, history.SourceSession, recent[0].Source)
	assert.Equal(t, session.SessionID, recent[0].SessionID)

	rec = env.do(t, http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, predict.LabelFatal, decode[sessionView](t, rec).Presentation.Label)

	rec = env.do(t, http.MethodDelete, base, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, base, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictorSession_SubmitInvalidRecord(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	session := decode[sessionView](t, env.do(t, http.MethodPost, "/v1/predictor/sessions", nil, ""))
	base := "/v1/predictor/sessions/" + session.SessionID

	env.do(t, http.MethodPatch, base+"/fields", models.FieldUpdateRequest{Field: "TIME", Value: ptr("830")}, "")

	rec := env.do(t, http.MethodPost, base+"/submit", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[sessionView](t, rec)
	assert.Equal(t, collision.MsgInvalidTime, result.Error)
	assert.Nil(t, result.Presentation)
	assert.Equal(t, int32(0), env.predictCalls.Load())
}

func TestPredictorSession_Errors(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	session := decode[sessionView](t, env.do(t, http.MethodPost, "/v1/predictor/sessions", nil, ""))
	base := "/v1/predictor/sessions/" + session.SessionID

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown session", http.MethodGet, "/v1/predictor/sessions/nope", nil, http.StatusNotFound},
		{"unknown session submit", http.MethodPost, "/v1/predictor/sessions/nope/submit", nil, http.StatusNotFound},
		{"unknown field", http.MethodPatch, base + "/fields", models.FieldUpdateRequest{Field: "COLOUR", Value: ptr("red")}, http.StatusBadRequest},
		{"value and checked", http.MethodPatch, base + "/fields", models.FieldUpdateRequest{Field: "SPEEDING", Value: ptr("YES"), Checked: ptr(true)}, http.StatusBadRequest},
		{"checked on text field", http.MethodPatch, base + "/fields", models.FieldUpdateRequest{Field: "DATE", Checked: ptr(true)}, http.StatusBadRequest},
		{"missing body", http.MethodPatch, base + "/fields", nil, http.StatusBadRequest},
		{"location out of range", http.MethodPut, base + "/location", models.LocationRequest{Lat: ptr(91.0), Lng: ptr(0.0)}, http.StatusBadRequest},
		{"location missing lng", http.MethodPut, base + "/location", models.LocationRequest{Lat: ptr(43.0)}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestPredictorSession_ConcurrentSubmitConflicts(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	env := newTestEnv(t, envOptions{predictHandler: func(w http.ResponseWriter, _ *http.Request) {
		started <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"prediction":[0],"prediction_proba_fatal":[0.1]}`))
	}})

	session := decode[sessionView](t, env.do(t, http.MethodPost, "/v1/predictor/sessions", nil, ""))
	base := "/v1/predictor/sessions/" + session.SessionID
	for field, value := range map[string]string{"DATE": "2023-10-26", "TIME": "0830", "LATITUDE": "43.6", "LONGITUDE": "-79.4"} {
		env.do(t, http.MethodPatch, base+"/fields", models.FieldUpdateRequest{Field: field, Value: ptr(value)}, "")
	}

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- env.do(t, http.MethodPost, base+"/submit", nil, "") }()
	<-started

	rec := env.do(t, http.MethodPost, base+"/submit", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	done := <-first
	assert.Equal(t, http.StatusOK, done.Code)
	assert.Equal(t, predict.LabelNonFatal, decode[sessionView](t, done).Presentation.Label)
	assert.Equal(t, int32(1), env.predictCalls.Load())
}

func TestPredictions(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		rec := env.do(t, http.MethodPost, "/v1/predictions", validRecord(), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[models.PredictionResponse](t, rec)
		assert.Equal(t, "2023-10-26", resp.Request.Date)
		assert.Equal(t, "YES", resp.Request.Speeding)
		assert.Equal(t, predict.LabelFatal, resp.Presentation.Label)
		assert.True(t, resp.Presentation.HasProbability)

		require.Len(t, env.lastBatch, 1)
		assert.NotContains(t, env.lastBatch[0], "UI_ONLY")
		assert.Len(t, env.lastBatch[0], 30)

		recent, err := env.history.Recent(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, history.SourceDirect, recent[0].Source)
	})

	t.Run("validation error", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		record := validRecord()
		record["LONGITUDE"] = 200.0
		rec := env.do(t, http.MethodPost, "/v1/predictions", record, "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		problem := decode[models.Problem](t, rec)
		assert.Equal(t, collision.MsgInvalidLongitude, problem.Detail)
		require.Len(t, problem.Errors, 1)
		assert.Equal(t, "LONGITUDE", problem.Errors[0].Field)
		assert.Equal(t, int32(0), env.predictCalls.Load())
	})

	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, envOptions{noPredictURL: true})
		record := validRecord()
		record["TIME"] = "bad"
		rec := env.do(t, http.MethodPost, "/v1/predictions", record, "")

		// Configuration is checked before validation.
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, predict.MsgNotConfigured, decode[models.Problem](t, rec).Detail)
	})

	t.Run("upstream error body", func(t *testing.T) {
		env := newTestEnv(t, envOptions{predictHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"Model input has missing columns"}`))
		}})
		rec := env.do(t, http.MethodPost, "/v1/predictions", validRecord(), "")

		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Model input has missing columns", decode[models.Problem](t, rec).Detail)

		recent, err := env.history.Recent(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.False(t, recent[0].Succeeded())
	})

	t.Run("upstream server error", func(t *testing.T) {
		env := newTestEnv(t, envOptions{predictHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}})
		rec := env.do(t, http.MethodPost, "/v1/predictions", validRecord(), "")

		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "HTTP error! status: 500", decode[models.Problem](t, rec).Detail)
	})

	t.Run("malformed json", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		req := httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(`{"TIME":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		req := httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(`TIME=0830`))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestInsights(t *testing.T) {
	t.Run("loaded", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		rec := env.do(t, http.MethodGet, "/v1/insights/collisions-by-region", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[models.CollisionsByRegion](t, rec)
		assert.Equal(t, insights.StateLoaded, body.State)
		require.Len(t, body.Regions, 2)
		assert.Equal(t, "Toronto and East York", body.Regions[0].District)
		assert.Equal(t, int64(1532), body.Regions[0].CollisionCount)
		assert.Empty(t, body.Message)
	})

	t.Run("empty", func(t *testing.T) {
		env := newTestEnv(t, envOptions{insightsHandler: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}})
		body := decode[models.CollisionsByRegion](t, env.do(t, http.MethodGet, "/v1/insights/collisions-by-region", nil, ""))
		assert.Empty(t, body.Regions)
		assert.Equal(t, insights.MsgEmpty, body.Message)
	})

	t.Run("upstream failure", func(t *testing.T) {
		env := newTestEnv(t, envOptions{insightsHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}})
		rec := env.do(t, http.MethodGet, "/v1/insights/collisions-by-region", nil, "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "HTTP error! status: 404", decode[models.Problem](t, rec).Detail)
	})

	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, envOptions{noInsightsURL: true})
		rec := env.do(t, http.MethodGet, "/v1/insights/collisions-by-region", nil, "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, insights.MsgNotConfigured, decode[models.Problem](t, rec).Detail)
	})
}

func TestAdminAssessments(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/v1/predictions", validRecord(), "").Code)
	}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/admin/assessments", nil, "").Code)

	token := env.operatorToken(t)
	rec := env.do(t, http.MethodGet, "/v1/admin/assessments?limit=2", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.AssessmentList](t, rec)
	assert.Equal(t, 2, list.Limit)
	assert.Len(t, list.Items, 2)

	rec = env.do(t, http.MethodGet, "/v1/admin/assessments?limit=100000", nil, token)
	assert.Equal(t, history.MaxLimit, decode[models.AssessmentList](t, rec).Limit)

	rec = env.do(t, http.MethodGet, "/v1/admin/assessments?limit=zero", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.do(t, http.MethodPost, "/v1/predictions", validRecord(), "")
	env.do(t, http.MethodGet, "/v1/insights/collisions-by-region", nil, "")

	rec := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ksi_predictor_predictions_total{outcome="fatal",source="direct"} 1`)
	assert.Contains(t, body, `ksi_predictor_insights_requests_total{outcome="success"} 1`)
	assert.Contains(t, body, `ksi_predictor_assessments_recorded_total{outcome="success",sink="store"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodGet, "/v1/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = env.do(t, http.MethodPut, "/v1/predictions", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSecurityHeadersOnAllResponses(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/v1/ops/health", nil, "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func ptr[T any](v T) *T {
	return &v
}
