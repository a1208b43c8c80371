package models

import "github.com/ksipredictor/ksipredictor/internal/history"

// AssessmentList is a page of recorded assessments, newest first.
type AssessmentList struct {
	Items []*history.Assessment `json:"items"`
	Limit int                   `json:"limit"`
}
