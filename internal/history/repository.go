package history

import (
	"context"
	"time"
)

// DefaultLimit is used when a listing asks for zero or fewer rows.
const DefaultLimit = 50

// MaxLimit caps a single listing.
const MaxLimit = 500

// Repository defines assessment persistence.
type Repository interface {
	// Save stores a new assessment. Saving an existing ID is a no-op so
	// redelivered events do not duplicate rows.
	Save(ctx context.Context, a *Assessment) error

	// Get retrieves an assessment by ID.
	Get(ctx context.Context, id string) (*Assessment, error)

	// Recent returns up to limit assessments, newest first.
	Recent(ctx context.Context, limit int) ([]*Assessment, error)

	// DeleteBefore removes assessments created before cutoff and returns
	// how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
