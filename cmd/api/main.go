// Package main provides the entrypoint for the trafficeta API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/internal/api"
	"github.com/trafficeta/trafficeta/internal/api/handler"
	"github.com/trafficeta/trafficeta/internal/api/middleware"
	"github.com/trafficeta/trafficeta/internal/baseline"
	"github.com/trafficeta/trafficeta/internal/config"
	"github.com/trafficeta/trafficeta/internal/eta"
	"github.com/trafficeta/trafficeta/internal/provider/resilience"
	"github.com/trafficeta/trafficeta/internal/routing"
	"github.com/trafficeta/trafficeta/internal/routing/openrouteservice"
	"github.com/trafficeta/trafficeta/internal/telemetry"
	"github.com/trafficeta/trafficeta/internal/traffic"
	"github.com/trafficeta/trafficeta/internal/traffic/here"
	"github.com/trafficeta/trafficeta/internal/traffic/synthetic"
	"github.com/trafficeta/trafficeta/internal/traffic/tomtom"
	"github.com/trafficeta/trafficeta/internal/weather"
	"github.com/trafficeta/trafficeta/internal/weather/openmeteo"
	"github.com/trafficeta/trafficeta/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "trafficeta-api"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, parseErr := zerolog.ParseLevel(cfg.LogLevel); parseErr == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting trafficeta API")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	stopProfiling := telemetry.StartProfiling(telemetry.ProfilingConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: serviceName,
		Tags:            map[string]string{"env": cfg.Environment, "version": Version},
		Logger:          log,
	})
	defer stopProfiling()

	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		return err
	}
	providerMetrics, err := telemetry.NewProviderMetrics(tp.Meter)
	if err != nil {
		return err
	}
	etaMetrics, err := telemetry.NewETAMetrics(tp.Meter)
	if err != nil {
		return err
	}

	registry := resilience.NewRegistry()
	manager := newTrafficManager(cfg.Traffic, registry, providerMetrics, log)

	model, err := eta.NewModel(eta.DefaultConfig(), log)
	if err != nil {
		return err
	}

	etaCfg := handler.ETAConfig{
		Model:               model,
		Baseline:            baseline.NewEstimator(baseline.Config{Logger: log}),
		Metrics:             etaMetrics,
		MaxRouteCoordinates: cfg.API.MaxRouteCoordinates,
		Logger:              log,
	}

	var weatherSvc *weather.Service
	if cfg.Weather.LookupEnabled {
		weatherSvc = weather.NewService(weather.ServiceConfig{
			Provider: openmeteo.NewClient(openmeteo.ClientConfig{
				BaseURL:  cfg.Weather.OpenMeteoURL,
				Registry: registry,
				Logger:   log,
			}),
			CacheTTL: cfg.Weather.CacheTTL,
			Logger:   log,
		})
		etaCfg.Weather = weatherSvc
	}

	if cfg.Routing.Enabled() {
		etaCfg.Routing = routing.NewService(routing.ServiceConfig{
			Provider: openrouteservice.NewClient(openrouteservice.ClientConfig{
				APIKey:   cfg.Routing.OpenRouteServiceKey.Value(),
				BaseURL:  cfg.Routing.OpenRouteServiceURL,
				Registry: registry,
				Logger:   log,
			}),
			CacheTTL: cfg.Routing.CacheTTL,
			Logger:   log,
		})
		log.Info().Msg("route lookup enabled")
	}

	warmPoints, err := worker.ParsePoints(cfg.Weather.WarmPoints)
	if err != nil {
		return err
	}
	refreshCfg := worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Interval:   cfg.Traffic.AutoRefreshInterval,
			WarmPoints: warmPoints,
		},
		Traffic: manager,
		Logger:  log,
	}
	etaCfg.Traffic = manager
	if weatherSvc != nil {
		refreshCfg.Weather = weatherSvc
	}
	go worker.NewRefreshJob(refreshCfg).Start(ctx)

	router := api.NewRouter(api.RouterConfig{
		Version:          Version,
		BuildTime:        BuildTime,
		ServiceName:      serviceName,
		Logger:           log,
		Metrics:          httpMetrics,
		ETA:              etaCfg,
		ComputeRateLimit: cfg.API.RateLimitPerMinute,
		RequireTLS:       cfg.API.RequireTLS,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newTrafficManager builds every provider and the manager over them. A
// disabled manager serves no data but still reports its status.
func newTrafficManager(cfg config.TrafficConfig, registry *resilience.Registry, rec traffic.Recorder, log zerolog.Logger) *traffic.Manager {
	if !cfg.Enabled {
		log.Info().Msg("live traffic disabled")
	}

	providers := []traffic.Provider{
		tomtom.New(tomtom.Config{
			APIKey:   cfg.TomTomAPIKey.Value(),
			Timeout:  cfg.RequestTimeout,
			CacheTTL: cfg.CacheTTL,
			Registry: registry,
			Recorder: rec,
			Logger:   log,
		}),
		here.New(here.Config{
			APIKey:   cfg.HEREAPIKey.Value(),
			Timeout:  cfg.RequestTimeout,
			CacheTTL: cfg.CacheTTL,
			Registry: registry,
			Recorder: rec,
			Logger:   log,
		}),
		synthetic.New(synthetic.Config{
			CacheTTL: cfg.CacheTTL,
			Recorder: rec,
			Logger:   log,
		}),
	}

	return traffic.NewManager(traffic.ManagerConfig{
		Settings: traffic.Settings{
			Enabled:             cfg.Enabled,
			ProviderPriority:    cfg.ProviderPriority,
			FallbackToSynthetic: cfg.FallbackToSynthetic,
			AutoRefreshInterval: cfg.AutoRefreshInterval,
		},
		Providers: providers,
		Health:    registry,
		Logger:    log,
	})
}
