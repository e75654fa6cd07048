// Package api wires the HTTP routes of the ETA service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/internal/api/handler"
	"github.com/trafficeta/trafficeta/internal/api/middleware"
	"github.com/trafficeta/trafficeta/internal/api/response"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger

	// Metrics is optional.
	Metrics *middleware.Metrics

	// ETA carries the calculation dependencies. ETA.Traffic also backs the
	// traffic and readiness endpoints.
	ETA handler.ETAConfig

	// ComputeRateLimit is the per-IP budget per minute for calculations.
	// Zero disables limiting.
	ComputeRateLimit int

	RequireTLS bool
}

// NewRouter creates the chi router with every API route.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "trafficeta-api"
	}

	// Order matters: request id first so every later layer can log it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(response.MethodNotAllowed)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ETA.Traffic)
	metadataHandler := handler.NewMetadataHandler()
	etaHandler := handler.NewETAHandler(cfg.ETA)

	computeRateLimit := middleware.RateLimitByIP(middleware.PerMinute(cfg.ComputeRateLimit))
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.With(standardRateLimit).Get("/metadata/conditions", metadataHandler.Conditions)

		r.With(computeRateLimit, middleware.RequireJSON).Post("/eta:compute", etaHandler.ComputeETA)

		if cfg.ETA.Traffic != nil {
			trafficHandler := handler.NewTrafficHandler(cfg.ETA.Traffic)
			r.Route("/traffic", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/status", trafficHandler.Status)
				r.Post("/cache:clear", trafficHandler.ClearCache)
			})
		}
	})

	return r
}
