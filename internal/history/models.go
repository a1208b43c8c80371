// Package history keeps a record of every prediction that reached the model
// service.
package history

import (
	"errors"
	"time"

	"github.com/ksipredictor/ksipredictor/internal/collision"
)

// ErrAssessmentNotFound is returned when no assessment has the given ID.
var ErrAssessmentNotFound = errors.New("assessment not found")

// Sources of an assessment.
const (
	SourceSession = "session"
	SourceDirect  = "direct"
)

// Assessment is one prediction request and what came back for it.
type Assessment struct {
	ID        string                      `json:"id"`
	Source    string                      `json:"source"`
	SessionID string                      `json:"sessionId,omitempty"`
	Request   collision.PredictionRequest `json:"request"`
	// Label and Probability are set when the call succeeded.
	Label       string   `json:"label,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
	// Error is the displayed failure text when the call failed.
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Succeeded reports whether the model service returned a prediction.
func (a Assessment) Succeeded() bool {
	return a.Error == ""
}
