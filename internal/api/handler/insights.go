package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/api/models"
	"github.com/ksipredictor/ksipredictor/internal/api/response"
	"github.com/ksipredictor/ksipredictor/internal/insights"
)

// RegionSource fetches collisions by region and reports whether it has an
// upstream to ask.
type RegionSource interface {
	insights.Fetcher
	Configured() bool
}

// InsightsHandler serves the regional insights report.
type InsightsHandler struct {
	source RegionSource
	logger zerolog.Logger
}

// NewInsightsHandler creates a new InsightsHandler.
func NewInsightsHandler(source RegionSource, logger zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{source: source, logger: logger}
}

// CollisionsByRegion handles GET /v1/insights/collisions-by-region. Each
// request drives its own report; a client that goes away deactivates it so
// the late response is dropped.
func (h *InsightsHandler) CollisionsByRegion(w http.ResponseWriter, r *http.Request) {
	if h.source == nil || !h.source.Configured() {
		response.ServiceUnavailable(w, r, insights.MsgNotConfigured)
		return
	}

	report := insights.NewReport(h.source, h.logger)
	done := report.Activate(r.Context())
	select {
	case <-done:
	case <-r.Context().Done():
		report.Deactivate()
		return
	}

	view := report.View()
	switch view.State {
	case insights.StateLoaded:
		out := models.CollisionsByRegion{State: view.State, Regions: view.Regions}
		if view.Empty() {
			out.Message = insights.MsgEmpty
		}
		response.JSON(w, r, http.StatusOK, out)
	case insights.StateFailed:
		response.BadGateway(w, r, view.Error)
	default:
		// Deactivated before the fetch finished: the client is gone.
		h.logger.Debug().Str("state", string(view.State)).Msg("insights report ended without a result")
	}
}
