package models

import (
	"github.com/ksipredictor/ksipredictor/internal/collision"
	"github.com/ksipredictor/ksipredictor/internal/predict"
)

// Session is a predictor session and its current form state.
type Session struct {
	SessionID    string                `json:"sessionId"`
	CreatedAt    Timestamp             `json:"createdAt"`
	Record       collision.Record      `json:"record"`
	Submitting   bool                  `json:"submitting"`
	Error        string                `json:"error,omitempty"`
	Result       *predict.Result       `json:"result,omitempty"`
	Presentation *predict.Presentation `json:"presentation,omitempty"`
	// MapsNotice is set when the location picker is unavailable.
	MapsNotice string `json:"mapsNotice,omitempty"`
}

// FieldUpdateRequest is one edit to a session's form. Checked is set for
// checkbox fields; Value for everything else.
type FieldUpdateRequest struct {
	Field   string  `json:"field"`
	Value   *string `json:"value,omitempty"`
	Checked *bool   `json:"checked,omitempty"`
}

// FieldUpdateResponse reports whether an edit was taken. A rejected
// coordinate keystroke leaves the record unchanged.
type FieldUpdateResponse struct {
	Accepted bool    `json:"accepted"`
	Session  Session `json:"session"`
}

// LocationRequest is a point picked on the map.
type LocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// PredictionResponse is the outcome of a stateless prediction.
type PredictionResponse struct {
	Request      collision.PredictionRequest `json:"request"`
	Result       *predict.Result             `json:"result"`
	Presentation predict.Presentation        `json:"presentation"`
}
