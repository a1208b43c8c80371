// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ksipredictor/ksipredictor/internal/database"
	"github.com/ksipredictor/ksipredictor/internal/history"
)

// History store backends.
const (
	StoreMemory   = history.BackendMemory
	StoreSQLite   = history.BackendSQLite
	StorePostgres = history.BackendPostgres
)

// Config holds all service settings.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Upstreams. An empty URL is not a startup error; submissions report
	// the configuration problem instead.
	PredictAPIURL   string
	PredictTimeout  time.Duration
	InsightsAPIURL  string
	InsightsTimeout time.Duration

	MapsAPIKey string

	SessionIdleTimeout time.Duration
	CORSAllowedOrigins []string
	JWTSigningKey      string
	RequireTLS         bool

	HistoryStore     string
	SQLitePath       string
	Database         database.Config
	HistoryRetention time.Duration
	PruneInterval    time.Duration

	PubSubProjectID    string
	PubSubTopic        string
	PubSubSubscription string

	OTELEnabled     bool
	OTLPEndpoint    string
	OTELSampleRatio float64
}

// Load reads a .env file if one exists, then the environment, applying
// defaults where unset. Variables already set in the environment win over
// the .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:     envOrDefault("APP_PORT", "8080"),
		Env:      envOrDefault("APP_ENV", "development"),
		LogLevel: envOrDefault("LOG_LEVEL", "info"),

		PredictAPIURL:  strings.TrimSpace(os.Getenv("PREDICT_API_URL")),
		InsightsAPIURL: strings.TrimSpace(os.Getenv("INSIGHTS_API_URL")),
		MapsAPIKey:     os.Getenv("MAPS_API_KEY"),

		CORSAllowedOrigins: splitList(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",

		HistoryStore: strings.ToLower(envOrDefault("HISTORY_STORE", StoreMemory)),
		SQLitePath:   envOrDefault("SQLITE_PATH", "ksipredictor.db"),

		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:        envOrDefault("PUBSUB_TOPIC", "ksi-assessments"),
		PubSubSubscription: envOrDefault("PUBSUB_SUBSCRIPTION", "ksi-assessments-worker"),

		OTELEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	durations := []struct {
		key       string
		def       string
		allowZero bool
		dst       *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", "30s", false, &cfg.ShutdownTimeout},
		{"PREDICT_TIMEOUT", "30s", false, &cfg.PredictTimeout},
		{"INSIGHTS_TIMEOUT", "15s", false, &cfg.InsightsTimeout},
		{"SESSION_IDLE_TIMEOUT", "30m", false, &cfg.SessionIdleTimeout},
		{"HISTORY_RETENTION", "2160h", false, &cfg.HistoryRetention},
		// Zero disables the scheduled prune.
		{"HISTORY_PRUNE_INTERVAL", "24h", true, &cfg.PruneInterval},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def, d.allowZero)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	ratio, err := strconv.ParseFloat(envOrDefault("OTEL_SAMPLE_RATIO", "1"), 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("invalid OTEL_SAMPLE_RATIO %q: want a number in (0, 1]", os.Getenv("OTEL_SAMPLE_RATIO"))
	}
	cfg.OTELSampleRatio = ratio

	switch cfg.HistoryStore {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		db, err := database.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		cfg.Database = db
	default:
		return nil, fmt.Errorf("invalid HISTORY_STORE %q: want memory, sqlite or postgres", cfg.HistoryStore)
	}

	if cfg.IsProduction() && cfg.JWTSigningKey == "" {
		return nil, errors.New("JWT_SIGNING_KEY is required in production")
	}

	return cfg, nil
}

// HistoryStoreConfig returns the settings for history.Open.
func (c *Config) HistoryStoreConfig() history.StoreConfig {
	return history.StoreConfig{
		Backend:    c.HistoryStore,
		SQLitePath: c.SQLitePath,
		Database:   c.Database,
	}
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PubSubEnabled reports whether assessment events go through Pub/Sub.
func (c *Config) PubSubEnabled() bool {
	return c.PubSubProjectID != ""
}

// MapsEnabled reports whether the location picker can be offered.
func (c *Config) MapsEnabled() bool {
	return c.MapsAPIKey != ""
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
