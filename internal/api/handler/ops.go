// Package handler provides HTTP handlers for the KSI predictor API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ksipredictor/ksipredictor/internal/api/models"
	"github.com/ksipredictor/ksipredictor/internal/api/response"
	"github.com/ksipredictor/ksipredictor/internal/provider/resilience"
)

const readinessTimeout = 2 * time.Second

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// OpsConfig holds dependencies for the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string
	// Registry is the upstream breaker registry. Optional.
	Registry *resilience.Registry
	// Checks are run by the readiness and status endpoints, keyed by
	// subsystem name.
	Checks map[string]Check
	Clock  clockwork.Clock
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    map[string]Check
	clock     clockwork.Clock
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		checks:    cfg.Checks,
		clock:     clock,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.NewTimestamp(h.clock.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails when any subsystem
// check fails. Upstream breakers do not affect readiness.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.NewTimestamp(h.clock.Now()),
	}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
			if health.Details == nil {
				health.Details = make(map[string]interface{})
			}
			health.Details[s.Name] = *s.Detail
			status = http.StatusServiceUnavailable
		}
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and upstream status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())
	providers := h.providerStatuses()

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		overall = worst(overall, s.Status)
	}
	for _, p := range providers {
		// An open breaker degrades the service; it can still answer.
		if p.Status != models.HealthStatusOK {
			overall = worst(overall, models.HealthStatusDegraded)
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.NewTimestamp(h.clock.Now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err := h.checks[name](ctx); err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}
	all := h.registry.All()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, health := range all {
		p := models.ProviderStatus{
			Provider:            health.Name,
			Status:              providerHealth(health.Status()),
			BreakerState:        resilience.StateName(health.State),
			Requests:            health.Counts.Requests,
			ConsecutiveFailures: health.Counts.ConsecutiveFailures,
			LastSuccessAt:       models.TimestampPtr(health.LastSuccessAt),
			LastFailureAt:       models.TimestampPtr(health.LastFailureAt),
		}
		if health.LastError != "" {
			msg := health.LastError
			p.Message = &msg
		}
		out = append(out, p)
	}
	return out
}

func providerHealth(status string) models.HealthStatus {
	switch status {
	case resilience.StatusHealthy:
		return models.HealthStatusOK
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
