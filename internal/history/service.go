package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ServiceConfig holds dependencies for the history service.
type ServiceConfig struct {
	Repository Repository
	// Clock stamps assessments without a CreatedAt. Default: real clock
	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// Service records and lists assessments.
type Service struct {
	repo   Repository
	clock  clockwork.Clock
	logger zerolog.Logger
}

// NewService creates a history service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:   cfg.Repository,
		clock:  clock,
		logger: cfg.Logger,
	}
}

// Stamp fills in a missing ID and CreatedAt.
func (s *Service) Stamp(a *Assessment) {
	Stamp(a, s.clock)
}

// Stamp fills in a missing ID and CreatedAt using clock.
func Stamp(a *Assessment, clock clockwork.Clock) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = clock.Now().UTC()
	}
}

// Record stamps and saves an assessment.
func (s *Service) Record(ctx context.Context, a Assessment) error {
	s.Stamp(&a)
	if err := s.repo.Save(ctx, &a); err != nil {
		return fmt.Errorf("save assessment %s: %w", a.ID, err)
	}
	s.logger.Debug().
		Str("assessment_id", a.ID).
		Str("source", a.Source).
		Bool("succeeded", a.Succeeded()).
		Msg("assessment recorded")
	return nil
}

// Recent returns up to limit assessments, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Assessment, error) {
	return s.repo.Recent(ctx, limit)
}

// Prune removes assessments older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-retention)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune assessments before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}

// Get returns one assessment.
func (s *Service) Get(ctx context.Context, id string) (*Assessment, error) {
	return s.repo.Get(ctx, id)
}
