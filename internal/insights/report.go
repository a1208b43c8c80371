package insights

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ReportState is the lifecycle of a report view.
type ReportState string

const (
	StateIdle    ReportState = "idle"
	StateLoading ReportState = "loading"
	StateLoaded  ReportState = "loaded"
	StateFailed  ReportState = "failed"
)

// ReportView is what a report shows at one moment.
type ReportView struct {
	State   ReportState   `json:"state"`
	Regions []RegionCount `json:"regions"`
	Error   string        `json:"error,omitempty"`
}

// Empty reports whether a loaded report has no rows.
func (v ReportView) Empty() bool {
	return v.State == StateLoaded && len(v.Regions) == 0
}

// Report holds the state of one collisions-by-region view. Each Activate
// starts a new generation; a response that arrives after its generation has
// ended is dropped.
type Report struct {
	fetcher Fetcher
	logger  zerolog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	view       ReportView
}

// NewReport creates an idle report.
func NewReport(fetcher Fetcher, logger zerolog.Logger) *Report {
	return &Report{
		fetcher: fetcher,
		logger:  logger,
		view:    ReportView{State: StateIdle},
	}
}

// Activate starts one fetch and moves the report to loading. The returned
// channel is closed once the fetch has finished, whether or not its result
// was kept.
func (r *Report) Activate(ctx context.Context) <-chan struct{} {
	fctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.generation++
	gen := r.generation
	r.cancel = cancel
	r.view = ReportView{State: StateLoading}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()

		regions, err := r.fetcher.CollisionsByRegion(fctx)

		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.generation {
			r.logger.Debug().Uint64("generation", gen).Msg("discarding stale insights response")
			return
		}
		if err != nil {
			r.logger.Warn().Err(err).Msg("collisions by region fetch failed")
			r.view = ReportView{State: StateFailed, Error: DisplayMessage(err)}
			return
		}
		r.view = ReportView{State: StateLoaded, Regions: regions}
	}()
	return done
}

// Deactivate ends the current generation and cancels its fetch.
func (r *Report) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.view = ReportView{State: StateIdle}
}

// View returns the current view.
func (r *Report) View() ReportView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.view
	if v.Regions != nil {
		v.Regions = append([]RegionCount(nil), v.Regions...)
	}
	return v
}
