// Package main provides the entrypoint for the KSI Predictor API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/api"
	"github.com/ksipredictor/ksipredictor/internal/api/handler"
	"github.com/ksipredictor/ksipredictor/internal/api/middleware"
	"github.com/ksipredictor/ksipredictor/internal/auth"
	"github.com/ksipredictor/ksipredictor/internal/config"
	"github.com/ksipredictor/ksipredictor/internal/events"
	"github.com/ksipredictor/ksipredictor/internal/form"
	"github.com/ksipredictor/ksipredictor/internal/history"
	"github.com/ksipredictor/ksipredictor/internal/insights"
	"github.com/ksipredictor/ksipredictor/internal/observability"
	"github.com/ksipredictor/ksipredictor/internal/predict"
	"github.com/ksipredictor/ksipredictor/internal/provider/resilience"
	"github.com/ksipredictor/ksipredictor/internal/telemetry"
	"github.com/ksipredictor/ksipredictor/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const devSigningKey = "local-dev-signing-key-change-in-production"

func main() {
	const serviceName = "ksi-predictor-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting KSI Predictor API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
		SampleRatio:    cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTELEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.OTELSampleRatio).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(promRegistry)

	upstreams := resilience.NewRegistry(nil)

	predictClient := predict.NewClient(predict.ClientConfig{
		URL:                  cfg.PredictAPIURL,
		Timeout:              cfg.PredictTimeout,
		Registry:             upstreams,
		OnBreakerStateChange: metrics.BreakerStateChanged,
		Logger:               log.With().Str("component", "predict").Logger(),
	})
	if !predictClient.Configured() {
		log.Warn().Msg("PREDICT_API_URL not set - submissions will report a configuration error")
	}

	insightsClient := insights.NewClient(insights.ClientConfig{
		BaseURL:              cfg.InsightsAPIURL,
		Timeout:              cfg.InsightsTimeout,
		Registry:             upstreams,
		Metrics:              metrics,
		OnBreakerStateChange: metrics.BreakerStateChanged,
		Logger:               log.With().Str("component", "insights").Logger(),
	})
	if !insightsClient.Configured() {
		log.Warn().Msg("INSIGHTS_API_URL not set - regional insights are unavailable")
	}

	store, err := history.Open(ctx, cfg.HistoryStoreConfig())
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.HistoryStore).Msg("failed to open history store")
	}
	defer store.Close()
	log.Info().Str("backend", store.Backend).Msg("history store opened")

	historyService := history.NewService(history.ServiceConfig{
		Repository: store.Repository,
		Logger:     log.With().Str("component", "history").Logger(),
	})

	// With Pub/Sub the worker persists assessments and prunes the store.
	// Without it the API does both itself.
	var recorder form.Recorder
	if cfg.PubSubEnabled() {
		publisher, pubErr := events.NewPublisher(ctx, events.PublisherConfig{
			ProjectID: cfg.PubSubProjectID,
			Topic:     cfg.PubSubTopic,
			Metrics:   metrics,
			Logger:    log.With().Str("component", "events").Logger(),
		})
		if pubErr != nil {
			log.Fatal().Err(pubErr).Msg("failed to create pubsub publisher")
		}
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub publisher")
			}
		}()
		recorder = publisher
		if store.Backend == history.BackendMemory {
			log.Warn().Msg("pubsub enabled with the memory history store - admin listings will stay empty")
		}
		log.Info().Str("topic", cfg.PubSubTopic).Msg("assessments published to pubsub")
	} else {
		recorder = events.NewStoreRecorder(historyService, metrics)

		pruneJob := worker.NewPruneJob(worker.PruneJobConfig{
			Config: worker.PruneConfig{
				Retention: cfg.HistoryRetention,
				Interval:  cfg.PruneInterval,
			},
			Pruner: historyService,
			Logger: log.With().Str("component", "prune").Logger(),
		})
		go pruneJob.Schedule(ctx)
	}

	jwtSigningKey := cfg.JWTSigningKey
	if jwtSigningKey == "" {
		jwtSigningKey = devSigningKey
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{SigningKey: jwtSigningKey})

	sessions := form.NewManager(form.ManagerConfig{
		IdleTimeout: cfg.SessionIdleTimeout,
		Metrics:     metrics,
		Logger:      log.With().Str("component", "sessions").Logger(),
	})
	go sessions.Run(ctx)

	predictor := form.NewPredictor(form.PredictorConfig{
		Client:   predictClient,
		Recorder: recorder,
		Metrics:  metrics,
		Logger:   log.With().Str("component", "predictor").Logger(),
	})

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        httpMetrics,
		Gatherer:       promRegistry,
		TokenValidator: jwtService,
		Sessions:       sessions,
		Predictor:      predictor,
		Insights:       insightsClient,
		History:        historyService,
		Registry:       upstreams,
		Checks: map[string]handler.Check{
			"history_store": store.Ping,
		},
		Metadata: handler.MetadataConfig{
			MapsAPIKey:         cfg.MapsAPIKey,
			PredictConfigured:  predictClient.Configured(),
			InsightsConfigured: insightsClient.Configured(),
		},
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RequireTLS:         cfg.RequireTLS,
	})

	// WriteTimeout leaves room for a full prediction call.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PredictTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
