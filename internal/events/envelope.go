// Package events carries assessment history over Google Cloud Pub/Sub.
// The API publishes one message per finished prediction and the worker
// consumes them into the history store.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ksipredictor/ksipredictor/internal/history"
)

// Message types.
const (
	TypeAssessmentRecorded = "assessment_recorded"
	TypeHistoryPrune       = "history_prune"
)

// AttrType is the message attribute holding the envelope type, so
// subscriptions can filter without decoding the body.
const AttrType = "type"

// ErrMissingAssessment is returned when an assessment_recorded envelope has
// no assessment.
var ErrMissingAssessment = errors.New("assessment_recorded event without assessment")

// Envelope is the JSON body of every message.
type Envelope struct {
	Type       string              `json:"type"`
	Assessment *history.Assessment `json:"assessment,omitempty"`
	// RetentionDays overrides the worker's configured retention for a
	// history_prune job. Zero keeps the configured value.
	RetentionDays int `json:"retention_days,omitempty"`
}

// NewAssessmentRecorded wraps an assessment.
func NewAssessmentRecorded(a history.Assessment) Envelope {
	return Envelope{Type: TypeAssessmentRecorded, Assessment: &a}
}

// Encode marshals the envelope.
func (e Envelope) Encode() ([]byte, error) {
	if e.Type == TypeAssessmentRecorded && e.Assessment == nil {
		return nil, ErrMissingAssessment
	}
	return json.Marshal(e)
}

// Decode parses a message body.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == TypeAssessmentRecorded && e.Assessment == nil {
		return Envelope{}, ErrMissingAssessment
	}
	return e, nil
}
