package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/observability"
)

// ErrSessionNotFound is returned for unknown or evicted session IDs.
var ErrSessionNotFound = errors.New("session not found")

// DefaultIdleTimeout is how long a session may go untouched.
const DefaultIdleTimeout = 30 * time.Minute

// Session is one user's predictor form.
type Session struct {
	ID        string
	CreatedAt time.Time

	store *Store

	mu       sync.Mutex
	lastSeen time.Time
}

// Store returns the session's form state holder.
func (s *Session) Store() *Store {
	return s.store
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// ManagerConfig holds configuration for a session Manager.
type ManagerConfig struct {
	// IdleTimeout is how long an unused session is kept.
	// Default: DefaultIdleTimeout
	IdleTimeout time.Duration

	// Clock drives timestamps and the eviction ticker. Default: real clock
	Clock clockwork.Clock

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Manager owns all open sessions.
type Manager struct {
	idleTimeout time.Duration
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.Discard()
	}
	return &Manager{
		idleTimeout: cfg.IdleTimeout,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		sessions:    make(map[string]*Session),
	}
}

// Create opens a session holding the default record.
func (m *Manager) Create() *Session {
	now := m.clock.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		store:     NewStore(),
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.ActiveSessions.Set(float64(n))
	m.logger.Debug().Str("session_id", s.ID).Msg("session created")
	return s
}

// Get returns a session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.clock.Now().UTC())
	return s, nil
}

// Close removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	m.metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle closes sessions unused for at least the idle timeout. Sessions
// with a submission running are kept. It returns the number closed.
func (m *Manager) EvictIdle() int {
	cutoff := m.clock.Now().UTC().Add(-m.idleTimeout)

	m.mu.Lock()
	evicted := 0
	for id, s := range m.sessions {
		if s.LastSeen().After(cutoff) || s.store.Get().Submitting {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if evicted > 0 {
		m.metrics.SessionsEvicted.Add(float64(evicted))
		m.metrics.ActiveSessions.Set(float64(n))
		m.logger.Info().Int("evicted", evicted).Int("remaining", n).Msg("evicted idle sessions")
	}
	return evicted
}

// Run evicts idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.EvictIdle()
		}
	}
}
