// Package insights fetches historical collision counts grouped by district.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/ksipredictor/ksipredictor/internal/observability"
	"github.com/ksipredictor/ksipredictor/internal/provider/resilience"
	"github.com/ksipredictor/ksipredictor/internal/telemetry"
)

const (
	// ProviderName identifies the insights service in the upstream registry.
	ProviderName = "insights"

	// DefaultTimeout bounds one insights call.
	DefaultTimeout = 15 * time.Second

	collisionsByRegionPath = "/insights/collisions-by-region"
)

// Display texts.
const (
	MsgNotConfigured = "API URL for insights is not configured."
	MsgUnknown       = "An unknown error occurred while fetching collision data by region."
	MsgEmpty         = "No collision data by region found."
	MsgUnreachable   = "Failed to reach the insights service."
	MsgInvalid       = "The insights service returned an invalid response."
	MsgUnavailable   = "Insights service is temporarily unavailable."
)

// ErrNotConfigured is returned when the insights base URL is empty.
var ErrNotConfigured = errors.New(MsgNotConfigured)

// ErrInvalidResponse wraps a response body that is not a list of region counts.
var ErrInvalidResponse = errors.New("invalid insights response")

// RegionCount is the number of recorded collisions in one district.
type RegionCount struct {
	District       string `json:"DISTRICT"`
	CollisionCount int64  `json:"collision_count"`
}

// StatusError is a non-success response from the insights service.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "HTTP error! status: " + strconv.Itoa(e.StatusCode)
}

// Fetcher is the contract Report depends on.
type Fetcher interface {
	CollisionsByRegion(ctx context.Context) ([]RegionCount, error)
}

// ClientConfig holds configuration for the insights client.
type ClientConfig struct {
	// BaseURL is the insights service root. Empty leaves the client
	// unconfigured.
	BaseURL string

	HTTPClient resilience.HTTPDoer

	// Timeout bounds each call. Default: DefaultTimeout
	Timeout time.Duration

	Registry *resilience.Registry

	// Metrics counts fetch outcomes. Optional.
	Metrics *observability.Metrics

	// OnBreakerStateChange observes the default client's breaker.
	OnBreakerStateChange func(name string, from, to gobreaker.State)

	Logger zerolog.Logger
}

// Client reads the collisions-by-region report.
type Client struct {
	baseURL    string
	httpClient resilience.HTTPDoer
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// NewClient creates an insights client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		rcfg := resilience.DefaultConfig(ProviderName)
		rcfg.Timeout = timeout
		rcfg.Retries = 0
		rcfg.Registry = cfg.Registry
		if cfg.OnBreakerStateChange != nil {
			bcfg := resilience.DefaultBreakerConfig(ProviderName)
			bcfg.OnStateChange = cfg.OnBreakerStateChange
			rcfg.Breaker = &bcfg
		}
		rcfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(rcfg)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.Discard()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		metrics:    metrics,
		logger:     cfg.Logger,
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// CollisionsByRegion issues one GET and returns the array as sent. The
// service orders it by count, descending; the order is not checked.
func (c *Client) CollisionsByRegion(ctx context.Context) ([]RegionCount, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := telemetry.StartSpan(ctx, "insights.CollisionsByRegion")
	regions, err := c.fetch(ctx)
	telemetry.EndSpan(span, err)

	c.metrics.InsightsRequests.WithLabelValues(observability.Outcome(err)).Inc()
	return regions, err
}

func (c *Client) fetch(ctx context.Context) ([]RegionCount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+collisionsByRegionPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching collisions by region: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Warn().Int("status", resp.StatusCode).Msg("insights service returned error")
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var regions []RegionCount
	if err := json.NewDecoder(resp.Body).Decode(&regions); err != nil {
		return nil, fmt.Errorf("decoding collisions by region: %w: %w", ErrInvalidResponse, err)
	}
	if regions == nil {
		regions = []RegionCount{}
	}
	return regions, nil
}

// DisplayMessage turns a fetch error into the text shown in the report.
func DisplayMessage(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return MsgNotConfigured
	case errors.As(err, &statusErr):
		return statusErr.Error()
	case errors.Is(err, resilience.ErrCircuitOpen):
		return MsgUnavailable
	case errors.Is(err, ErrInvalidResponse):
		return MsgInvalid
	case err.Error() == "":
		return MsgUnknown
	default:
		// Transport errors carry the upstream URL; never surface them.
		return MsgUnreachable
	}
}
