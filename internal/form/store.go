// Package form holds predictor sessions: the edited collision record, the
// submission state and the last outcome.
package form

import (
	"sync"

	"github.com/ksipredictor/ksipredictor/internal/collision"
	"github.com/ksipredictor/ksipredictor/internal/predict"
)

// Snapshot is a consistent view of a store at one moment.
type Snapshot struct {
	Record       collision.Record      `json:"record"`
	Submitting   bool                  `json:"submitting"`
	Error        string                `json:"error,omitempty"`
	Result       *predict.Result       `json:"result,omitempty"`
	Presentation *predict.Presentation `json:"presentation,omitempty"`
}

// Store is the single holder of one session's form state. All methods are
// safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStore returns a store holding the default record.
func NewStore() *Store {
	return &Store{snap: Snapshot{Record: collision.NewRecord()}}
}

// Get returns the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Set replaces the record.
func (s *Store) Set(next collision.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Record = next
}

// Apply runs one edit through the field mutator against the current record.
// It reports false, leaving the record unchanged, when the edit is rejected.
func (s *Store) Apply(f collision.Field, in collision.Input) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := collision.Apply(s.snap.Record, f, in)
	if ok {
		s.snap.Record = next
	}
	return s.snap, ok
}

// OnLocationPicked sets both coordinates to confirmed numbers from the map
// picker. The coordinate text gate does not apply.
func (s *Store) OnLocationPicked(lat, lng float64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Record = s.snap.Record.WithCoordinates(lat, lng)
	return s.snap
}

// beginSubmit marks the store as submitting and clears the previous outcome.
// It returns false if a submission is already running.
func (s *Store) beginSubmit() (collision.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Submitting {
		return collision.Record{}, false
	}
	s.snap.Submitting = true
	s.snap.Error = ""
	s.snap.Result = nil
	s.snap.Presentation = nil
	return s.snap.Record, true
}

// finishSubmit stores an outcome and clears the submitting flag.
func (s *Store) finishSubmit(o Outcome) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Submitting = false
	if o.Err != nil {
		s.snap.Error = predict.DisplayMessage(o.Err)
		return s.snap
	}
	pres := o.Presentation
	s.snap.Result = o.Result
	s.snap.Presentation = &pres
	return s.snap
}
