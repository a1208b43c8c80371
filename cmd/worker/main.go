package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/config"
	"github.com/ksipredictor/ksipredictor/internal/history"
	"github.com/ksipredictor/ksipredictor/internal/observability"
	"github.com/ksipredictor/ksipredictor/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "ksi-predictor-worker").
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().Str("build_time", BuildTime).Msg("starting KSI Predictor worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(ctx, cfg.HistoryStoreConfig())
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.HistoryStore).Msg("failed to open history store")
	}
	defer store.Close()

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	historyService := history.NewService(history.ServiceConfig{
		Repository: store.Repository,
		Logger:     log.With().Str("component", "history").Logger(),
	})

	pruneJob := worker.NewPruneJob(worker.PruneJobConfig{
		Config: worker.PruneConfig{
			Retention: cfg.HistoryRetention,
			Interval:  cfg.PruneInterval,
		},
		Pruner: historyService,
		Logger: log.With().Str("component", "prune").Logger(),
	})

	processor := worker.NewProcessor(worker.ProcessorConfig{
		History:  historyService,
		PruneJob: pruneJob,
		Metrics:  metrics,
		Logger:   log.With().Str("component", "processor").Logger(),
	})

	// Worker exposes health and metrics for Cloud Run.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := store.Ping(r.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        status,
			"version":       Version,
			"history_store": store.Backend,
			"prune":         pruneJob.MetricsSnapshot(),
		})
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go pruneJob.Schedule(ctx)

	if cfg.PubSubEnabled() {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Processor:        processor,
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
				stop()
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - only scheduled pruning will run")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
