package models

import "github.com/ksipredictor/ksipredictor/internal/collision"

// FieldsResponse lists the collision form fields in display order.
type FieldsResponse struct {
	Fields []collision.Spec `json:"fields"`
	// Defaults is a fresh record: every field at its initial value.
	Defaults collision.Record `json:"defaults"`
}

// MapConfig tells the client how to set up the location picker.
type MapConfig struct {
	Enabled bool `json:"enabled"`
	// APIKey is only sent when Enabled is true.
	APIKey string `json:"apiKey,omitempty"`
	// Notice is shown in place of the map when it is disabled.
	Notice string `json:"notice,omitempty"`
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

// LatLng is a map position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ClientConfig is the runtime configuration the front end needs.
type ClientConfig struct {
	Map                MapConfig `json:"map"`
	PredictConfigured  bool      `json:"predictConfigured"`
	InsightsConfigured bool      `json:"insightsConfigured"`
}
