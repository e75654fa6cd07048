package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/trafficeta/trafficeta/internal/api/models"
	"github.com/trafficeta/trafficeta/internal/api/response"
	"github.com/trafficeta/trafficeta/internal/provider/resilience"
	"github.com/trafficeta/trafficeta/internal/traffic"
)

// TrafficHandler exposes the traffic manager's diagnostics.
type TrafficHandler struct {
	traffic TrafficSource
	now     func() time.Time
}

// NewTrafficHandler creates a TrafficHandler.
func NewTrafficHandler(source TrafficSource) *TrafficHandler {
	return &TrafficHandler{traffic: source, now: time.Now}
}

// Status handles GET /v1/traffic/status.
func (h *TrafficHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, trafficStatus(h.traffic.ProviderStatus()))
}

// ClearCache handles POST /v1/traffic/cache:clear.
func (h *TrafficHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	status := h.traffic.ProviderStatus()
	h.traffic.ClearAllCaches()

	cleared := make([]string, 0, len(status.Providers))
	for _, p := range status.Providers {
		cleared = append(cleared, p.Name)
	}
	response.JSON(w, r, http.StatusOK, models.CacheCleared{
		Cleared:   cleared,
		ClearedAt: models.Timestamp(h.now()),
	})
}

func trafficStatus(s traffic.Status) models.TrafficStatus {
	out := models.TrafficStatus{
		Enabled:        s.Enabled,
		ActiveProvider: s.ActiveProvider,
		LastRefresh:    models.TimestampPtr(s.LastRefresh),
		Providers:      make([]models.TrafficProviderStatus, 0, len(s.Providers)),
	}
	for _, p := range s.Providers {
		ps := models.TrafficProviderStatus{
			Name:      p.Name,
			Available: p.Available,
			Cache: models.TrafficCacheStats{
				CachedRoutes:         p.Cache.CachedRoutes,
				CacheDurationSeconds: p.Cache.CacheDuration.Seconds(),
			},
			Health: providerHealth(p.Health),
		}
		if len(p.Cache.LastRequests) > 0 {
			ps.Cache.LastRequests = make(map[string]models.Timestamp, len(p.Cache.LastRequests))
			for route, at := range p.Cache.LastRequests {
				ps.Cache.LastRequests[route] = models.Timestamp(at)
			}
		}
		out.Providers = append(out.Providers, ps)
	}
	return out
}

func providerHealth(h *resilience.ProviderHealth) *models.ProviderHealth {
	if h == nil {
		return nil
	}
	return &models.ProviderHealth{
		Status:        healthStatus(h),
		CircuitState:  h.CircuitState.String(),
		Requests:      h.Counts.Requests,
		Failures:      h.Counts.TotalFailures,
		LastSuccessAt: models.TimestampPtr(h.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(h.LastFailureAt),
		LastError:     h.LastError,
	}
}

func healthStatus(h *resilience.ProviderHealth) models.HealthStatus {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
