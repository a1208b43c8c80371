package predict

import (
	"errors"
	"fmt"

	"github.com/ksipredictor/ksipredictor/internal/collision"
)

// MsgNotConfigured is shown when no prediction endpoint is configured.
const MsgNotConfigured = "API URL is not configured. Please set PREDICT_API_URL in your environment variables."

// Fallback display texts.
const (
	MsgNetwork = "Failed to reach the prediction service."
	MsgParse   = "Failed to parse the prediction response."
	MsgUnknown = "An unknown error occurred."
)

// ErrNotConfigured is returned when the prediction endpoint URL is empty.
var ErrNotConfigured = errors.New("prediction endpoint not configured")

// ConfigurationError reports a missing required endpoint. It is raised
// before any network attempt.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Unwrap returns ErrNotConfigured.
func (e *ConfigurationError) Unwrap() error {
	return ErrNotConfigured
}

// NetworkError means the request could not complete: no response was
// received, or the upstream's circuit breaker is open.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("prediction request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-success response from the prediction service.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return e.Message
}

// ParseError is a success response whose body is not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decoding prediction response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DisplayMessage turns any submission error into the single line of text
// shown to the user.
func DisplayMessage(err error) string {
	var (
		cfgErr   *ConfigurationError
		valErr   *collision.ValidationError
		apiErr   *APIError
		netErr   *NetworkError
		parseErr *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return cfgErr.Message
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &netErr):
		return MsgNetwork
	case errors.As(err, &parseErr):
		return MsgParse
	default:
		return MsgUnknown
	}
}
