package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository keeps assessments in process memory. Used when no
// history store is configured and in tests.
type InMemoryRepository struct {
	mu          sync.RWMutex
	assessments map[string]*Assessment
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		assessments: make(map[string]*Assessment),
	}
}

// Save stores a copy of a.
func (r *InMemoryRepository) Save(_ context.Context, a *Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assessments[a.ID]; exists {
		return nil
	}
	cpy := *a
	r.assessments[a.ID] = &cpy
	return nil
}

// Get retrieves an assessment by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assessments[id]
	if !ok {
		return nil, ErrAssessmentNotFound
	}
	cpy := *a
	return &cpy, nil
}

// Recent returns the newest assessments first.
func (r *InMemoryRepository) Recent(_ context.Context, limit int) ([]*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Assessment, 0, len(r.assessments))
	for _, a := range r.assessments {
		cpy := *a
		out = append(out, &cpy)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteBefore removes assessments created before cutoff.
func (r *InMemoryRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, a := range r.assessments {
		if a.CreatedAt.Before(cutoff) {
			delete(r.assessments, id)
			n++
		}
	}
	return n, nil
}
