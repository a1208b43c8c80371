package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/api/middleware"
	"github.com/ksipredictor/ksipredictor/internal/api/models"
	"github.com/ksipredictor/ksipredictor/internal/api/response"
	"github.com/ksipredictor/ksipredictor/internal/history"
)

// AssessmentLister lists recorded assessments.
type AssessmentLister interface {
	Recent(ctx context.Context, limit int) ([]*history.Assessment, error)
}

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	history AssessmentLister
	logger  zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(lister AssessmentLister, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{history: lister, logger: logger}
}

// ListAssessments handles GET /v1/admin/assessments?limit=N.
func (h *AdminHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer", Code: "INVALID_FORMAT"},
			})
			return
		}
		limit = min(n, history.MaxLimit)
	}

	items, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).
			Str("operator", middleware.GetOperator(r.Context())).
			Msg("failed to list assessments")
		response.InternalError(w, r, "failed to list assessments")
		return
	}
	if items == nil {
		items = []*history.Assessment{}
	}

	response.JSON(w, r, http.StatusOK, models.AssessmentList{Items: items, Limit: limit})
}
