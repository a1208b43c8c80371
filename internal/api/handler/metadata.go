package handler

import (
	"net/http"

	"github.com/ksipredictor/ksipredictor/internal/api/models"
	"github.com/ksipredictor/ksipredictor/internal/api/response"
	"github.com/ksipredictor/ksipredictor/internal/collision"
)

// Map picker defaults: central Toronto.
const (
	DefaultMapLat  = 43.6532
	DefaultMapLng  = -79.3832
	DefaultMapZoom = 11
)

// MapsDisabledNotice is shown in place of the map when no key is set.
const MapsDisabledNotice = "Maps API key is not configured. Please set MAPS_API_KEY. Map functionality will be disabled."

// MetadataConfig holds the client-facing configuration.
type MetadataConfig struct {
	MapsAPIKey         string
	PredictConfigured  bool
	InsightsConfigured bool
}

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	clientConfig models.ClientConfig
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(cfg MetadataConfig) *MetadataHandler {
	return &MetadataHandler{clientConfig: buildClientConfig(cfg)}
}

func buildClientConfig(cfg MetadataConfig) models.ClientConfig {
	m := models.MapConfig{
		Enabled: cfg.MapsAPIKey != "",
		Center:  models.LatLng{Lat: DefaultMapLat, Lng: DefaultMapLng},
		Zoom:    DefaultMapZoom,
	}
	if m.Enabled {
		m.APIKey = cfg.MapsAPIKey
	} else {
		m.Notice = MapsDisabledNotice
	}
	return models.ClientConfig{
		Map:                m,
		PredictConfigured:  cfg.PredictConfigured,
		InsightsConfigured: cfg.InsightsConfigured,
	}
}

// MapsNotice returns the notice shown instead of the map, or "".
func (h *MetadataHandler) MapsNotice() string {
	return h.clientConfig.Map.Notice
}

// ListFields handles GET /v1/metadata/fields - the collision form model.
func (h *MetadataHandler) ListFields(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.FieldsResponse{
		Fields:   collision.Fields(),
		Defaults: collision.NewRecord(),
	})
}

// GetClientConfig handles GET /v1/metadata/client-config.
func (h *MetadataHandler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.clientConfig)
}
