package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ksipredictor/ksipredictor/internal/api/models"
	"github.com/ksipredictor/ksipredictor/internal/api/response"
	"github.com/ksipredictor/ksipredictor/internal/collision"
	"github.com/ksipredictor/ksipredictor/internal/form"
	"github.com/ksipredictor/ksipredictor/internal/predict"
)

// PredictorConfig holds dependencies for the predictor endpoints.
type PredictorConfig struct {
	Sessions  *form.Manager
	Predictor *form.Predictor
	// MapsNotice is attached to every session view when non-empty.
	MapsNotice string
	Logger     zerolog.Logger
}

// PredictorHandler serves predictor sessions and stateless predictions.
type PredictorHandler struct {
	sessions   *form.Manager
	predictor  *form.Predictor
	mapsNotice string
	logger     zerolog.Logger
}

// NewPredictorHandler creates a new PredictorHandler.
func NewPredictorHandler(cfg PredictorConfig) *PredictorHandler {
	return &PredictorHandler{
		sessions:   cfg.Sessions,
		predictor:  cfg.Predictor,
		mapsNotice: cfg.MapsNotice,
		logger:     cfg.Logger,
	}
}

// CreateSession handles POST /v1/predictor/sessions.
func (h *PredictorHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	response.Created(w, r, "/v1/predictor/sessions/"+s.ID, h.view(s, s.Store().Get()))
}

// GetSession handles GET /v1/predictor/sessions/{sessionId}.
func (h *PredictorHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, h.view(s, s.Store().Get()))
}

// DeleteSession handles DELETE /v1/predictor/sessions/{sessionId}.
func (h *PredictorHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionId")); err != nil {
		response.NotFound(w, r, "session not found")
		return
	}
	response.NoContent(w, r)
}

// UpdateField handles PATCH /v1/predictor/sessions/{sessionId}/fields.
// A rejected coordinate keystroke is not an error: the response reports
// accepted=false with the unchanged record.
func (h *PredictorHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req models.FieldUpdateRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	field := collision.Field(req.Field)
	in, fieldErr := fieldInput(field, req)
	if fieldErr != nil {
		response.BadRequest(w, r, fieldErr.Message, []models.FieldError{*fieldErr})
		return
	}

	snap, accepted := s.Store().Apply(field, in)
	response.JSON(w, r, http.StatusOK, models.FieldUpdateResponse{
		Accepted: accepted,
		Session:  h.view(s, snap),
	})
}

func fieldInput(field collision.Field, req models.FieldUpdateRequest) (collision.Input, *models.FieldError) {
	spec, known := collision.Lookup(field)
	switch {
	case req.Field == "":
		return collision.Input{}, &models.FieldError{Field: "field", Message: "field is required", Code: "REQUIRED"}
	case !known:
		return collision.Input{}, &models.FieldError{Field: "field", Message: fmt.Sprintf("unknown field %q", req.Field), Code: "UNKNOWN_FIELD"}
	case (req.Value == nil) == (req.Checked == nil):
		return collision.Input{}, &models.FieldError{Field: req.Field, Message: "exactly one of value or checked is required", Code: "INVALID_INPUT"}
	case req.Checked != nil && spec.Kind != collision.KindFlag:
		return collision.Input{}, &models.FieldError{Field: req.Field, Message: "checked applies only to flag fields", Code: "INVALID_INPUT"}
	case req.Checked != nil:
		return collision.Input{Kind: collision.InputToggle, Checked: *req.Checked}, nil
	default:
		return collision.Input{Kind: collision.InputText, Value: *req.Value}, nil
	}
}

// SetLocation handles PUT /v1/predictor/sessions/{sessionId}/location.
func (h *PredictorHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req models.LocationRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	var errs []models.FieldError
	if req.Lat == nil || math.IsNaN(*req.Lat) || *req.Lat < collision.MinLatitude || *req.Lat > collision.MaxLatitude {
		errs = append(errs, models.FieldError{Field: "lat", Message: collision.MsgInvalidLatitude, Code: "OUT_OF_RANGE"})
	}
	if req.Lng == nil || math.IsNaN(*req.Lng) || *req.Lng < collision.MinLongitude || *req.Lng > collision.MaxLongitude {
		errs = append(errs, models.FieldError{Field: "lng", Message: collision.MsgInvalidLongitude, Code: "OUT_OF_RANGE"})
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid location", errs)
		return
	}

	snap := s.Store().OnLocationPicked(*req.Lat, *req.Lng)
	response.JSON(w, r, http.StatusOK, h.view(s, snap))
}

// Submit handles POST /v1/predictor/sessions/{sessionId}/submit. Validation
// and prediction failures are reported in the session's error text, not as
// HTTP errors.
func (h *PredictorHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	snap, err := h.predictor.Submit(r.Context(), s)
	if errors.Is(err, form.ErrSubmissionInFlight) {
		response.Conflict(w, r, err.Error())
		return
	}
	response.JSON(w, r, http.StatusOK, h.view(s, snap))
}

// Predict handles POST /v1/predictions - a one-shot prediction for a record
// given as a JSON object keyed by field name.
func (h *PredictorHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var values map[string]interface{}
	if err := response.Decode(w, r, &values); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	record, err := collision.RecordFromValues(values)
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	out := h.predictor.Evaluate(r.Context(), record)

	var (
		valErr *collision.ValidationError
		cfgErr *predict.ConfigurationError
	)
	switch {
	case out.Err == nil:
		response.JSON(w, r, http.StatusOK, models.PredictionResponse{
			Request:      *out.Request,
			Result:       out.Result,
			Presentation: out.Presentation,
		})
	case errors.As(out.Err, &valErr):
		response.BadRequest(w, r, valErr.Message, []models.FieldError{
			{Field: string(valErr.Field), Message: valErr.Message, Code: "INVALID_FORMAT"},
		})
	case errors.As(out.Err, &cfgErr):
		response.ServiceUnavailable(w, r, predict.DisplayMessage(out.Err))
	case predict.IsUpstreamFailure(out.Err):
		response.BadGateway(w, r, predict.DisplayMessage(out.Err))
	default:
		h.logger.Error().Err(out.Err).Msg("unexpected prediction failure")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func (h *PredictorHandler) lookup(w http.ResponseWriter, r *http.Request) (*form.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		response.NotFound(w, r, "session not found")
		return nil, false
	}
	return s, true
}

func (h *PredictorHandler) view(s *form.Session, snap form.Snapshot) models.Session {
	return models.Session{
		SessionID:    s.ID,
		CreatedAt:    models.NewTimestamp(s.CreatedAt),
		Record:       snap.Record,
		Submitting:   snap.Submitting,
		Error:        snap.Error,
		Result:       snap.Result,
		Presentation: snap.Presentation,
		MapsNotice:   h.mapsNotice,
	}
}
