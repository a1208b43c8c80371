package models

import "github.com/ksipredictor/ksipredictor/internal/insights"

// CollisionsByRegion is the regional insights view. Message is set when the
// view is empty or failed.
type CollisionsByRegion struct {
	State   insights.ReportState   `json:"state"`
	Regions []insights.RegionCount `json:"regions"`
	Message string                 `json:"message,omitempty"`
}
