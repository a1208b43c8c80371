// Package predict calls the collision severity model service and renders its
// answers.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/ksipredictor/ksipredictor/internal/collision"
	"github.com/ksipredictor/ksipredictor/internal/provider/resilience"
)

const (
	// ProviderName identifies the model service in the upstream registry.
	ProviderName = "prediction"

	// DefaultTimeout bounds one prediction call.
	DefaultTimeout = 30 * time.Second
)

// Result mirrors the model service's response.
type Result struct {
	Prediction       []float64 `json:"prediction"`
	ProbabilityFatal []float64 `json:"prediction_proba_fatal,omitempty"`
}

// Predictor is the contract the submission flow depends on.
type Predictor interface {
	// Configured reports whether an endpoint is set. Submissions check it
	// before validating input.
	Configured() bool
	Predict(ctx context.Context, req collision.PredictionRequest) (*Result, error)
}

// ClientConfig holds configuration for the prediction client.
type ClientConfig struct {
	// URL is the full prediction endpoint. Empty leaves the client
	// unconfigured; every call then fails with a ConfigurationError.
	URL string

	// HTTPClient overrides the default single-attempt resilient client.
	HTTPClient resilience.HTTPDoer

	// Timeout bounds each call. Default: DefaultTimeout
	Timeout time.Duration

	// Registry receives the default client for health reporting.
	Registry *resilience.Registry

	// OnBreakerStateChange observes the default client's breaker.
	OnBreakerStateChange func(name string, from, to gobreaker.State)

	Logger zerolog.Logger
}

// Client posts normalized records to the model service.
type Client struct {
	url        string
	httpClient resilience.HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a prediction client. The default transport never
// retries: a prediction is submitted once per user action.
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

	return &Client{
		url:        cfg.URL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Configured reports whether an endpoint URL is set.
func (c *Client) Configured() bool {
	return c.url != ""
}

// Predict submits one record as a batch of one and decodes the answer.
func (c *Client) Predict(ctx context.Context, req collision.PredictionRequest) (*Result, error) {
	if !c.Configured() {
		return nil, &ConfigurationError{Message: MsgNotConfigured}
	}

	body, err := json.Marshal([]collision.PredictionRequest{req})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("district", req.District).
		Float64("lat", req.Latitude).
		Float64("lng", req.Longitude).
		Msg("requesting prediction")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errorFromBody(resp.StatusCode, respBody)
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Msg("prediction service returned error")
		return nil, apiErr
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &result, nil
}

// errorFromBody takes the message from a JSON body's "error" field, falling
// back to a generic status message.
func errorFromBody(status int, body []byte) *APIError {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		var msg string
		if json.Unmarshal(payload.Error, &msg) == nil && msg != "" {
			return &APIError{Message: msg, StatusCode: status}
		}
	}
	return &APIError{
		Message:    "HTTP error! status: " + strconv.Itoa(status),
		StatusCode: status,
	}
}

// IsUpstreamFailure reports whether err came from the model service or the
// path to it, as opposed to local configuration or input.
func IsUpstreamFailure(err error) bool {
	var (
		apiErr   *APIError
		netErr   *NetworkError
		parseErr *ParseError
	)
	return errors.As(err, &apiErr) || errors.As(err, &netErr) || errors.As(err, &parseErr)
}
