// Package api provides the HTTP API for the KSI collision predictor.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/api/handler"
	"github.com/ksipredictor/ksipredictor/internal/api/middleware"
	"github.com/ksipredictor/ksipredictor/internal/form"
	"github.com/ksipredictor/ksipredictor/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics records OpenTelemetry HTTP metrics. Optional.
	Metrics *middleware.Metrics
	// Gatherer backs GET /metrics. Optional.
	Gatherer prometheus.Gatherer

	// TokenValidator guards the status and admin routes.
	TokenValidator middleware.TokenValidator

	Sessions  *form.Manager
	Predictor *form.Predictor
	Insights  handler.RegionSource
	History   handler.AssessmentLister
	Registry  *resilience.Registry
	Checks    map[string]handler.Check

	Metadata           handler.MetadataConfig
	CORSAllowedOrigins []string
	RequireTLS         bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ksi-predictor-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))           // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))         // Panic recovery
	r.Use(chimiddleware.RealIP)                    // Real IP extraction
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins)) // Browser front end
	r.Use(middleware.SecurityHeaders)              // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))   // TLS enforcement behind the load balancer
	r.Use(middleware.ContentTypeJSON)              // JSON content type
	r.Use(middleware.RequireJSON)                  // Reject non-JSON bodies

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.Checks,
	})
	metadataHandler := handler.NewMetadataHandler(cfg.Metadata)
	predictorHandler := handler.NewPredictorHandler(handler.PredictorConfig{
		Sessions:   cfg.Sessions,
		Predictor:  cfg.Predictor,
		MapsNotice: metadataHandler.MapsNotice(),
		Logger:     cfg.Logger,
	})
	insightsHandler := handler.NewInsightsHandler(cfg.Insights, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.History, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.TokenValidator)

	predictionRateLimit := middleware.RateLimitByIP(middleware.PredictionRateLimit) // 20 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)   // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)     // 100 req/min

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Metadata endpoints (public) - standard rate limiting
		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/fields", metadataHandler.ListFields)
			r.Get("/client-config", metadataHandler.GetClientConfig)
		})

		// Predictor sessions
		r.Route("/predictor/sessions", func(r chi.Router) {
			r.With(standardRateLimit).Post("/", predictorHandler.CreateSession)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", predictorHandler.GetSession)
				r.With(standardRateLimit).Delete("/", predictorHandler.DeleteSession)
				r.With(standardRateLimit).Patch("/fields", predictorHandler.UpdateField)
				r.With(standardRateLimit).Put("/location", predictorHandler.SetLocation)
				// Submits reach the model service: limited per IP and per session
				r.With(predictionRateLimit, middleware.RateLimitBySession(middleware.ExpensiveRateLimit)).
					Post("/submit", predictorHandler.Submit)
			})
		})

		// Stateless prediction - reaches the model service
		r.With(predictionRateLimit).Post("/predictions", predictorHandler.Predict)

		// Insights proxy
		r.With(expensiveRateLimit).Get("/insights/collisions-by-region", insightsHandler.CollisionsByRegion)

		// Admin endpoints (authenticated)
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/assessments", adminHandler.ListAssessments)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handler.NotFound(w, req)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		handler.MethodNotAllowed(w, req)
	})

	return r
}
