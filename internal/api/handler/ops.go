package handler

import (
	"net/http"
	"time"

	"github.com/trafficeta/trafficeta/internal/api/models"
	"github.com/trafficeta/trafficeta/internal/api/response"
)

// OpsHandler serves liveness and readiness.
type OpsHandler struct {
	version   string
	buildTime string
	traffic   TrafficSource
	now       func() time.Time
}

// NewOpsHandler creates an OpsHandler. source may be nil.
func NewOpsHandler(version, buildTime string, source TrafficSource) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		traffic:   source,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Calculations never depend on an
// upstream, so unhealthy providers degrade the status without failing it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}

	if h.traffic != nil {
		status := h.traffic.ProviderStatus()
		check := models.Check{Name: "traffic", Status: models.HealthStatusOK}
		switch {
		case !status.Enabled:
			check.Detail = "live traffic disabled"
		case status.ActiveProvider == "":
			check.Status = models.HealthStatusDegraded
			check.Detail = "no traffic provider available"
		default:
			check.Detail = "active provider " + status.ActiveProvider
		}
		health.Checks = append(health.Checks, check)

		for _, p := range status.Providers {
			if p.Health == nil {
				continue
			}
			pc := models.Check{Name: "provider:" + p.Name, Status: healthStatus(p.Health), Detail: p.Health.LastError}
			health.Checks = append(health.Checks, pc)
		}

		for _, c := range health.Checks {
			if c.Status != models.HealthStatusOK {
				health.Status = models.HealthStatusDegraded
			}
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}
