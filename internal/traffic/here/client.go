// Package here provides a traffic.Provider backed by the HERE Traffic API 6.2.
package here

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trafficeta/trafficeta/internal/provider/resilience"
	"github.com/trafficeta/trafficeta/internal/traffic"
)

const (
	// DefaultBaseURL is the base URL for the HERE Traffic API.
	DefaultBaseURL = "https://traffic.ls.hereapi.com/traffic/6.2"

	// DisplayName labels data produced by this provider.
	DisplayName = "HERE"

	// HERE reports no per-item confidence.
	defaultConfidence = 0.8
)

var errNoCoordinates = errors.New("route has no coordinates")

// Config holds configuration for the HERE provider.
type Config struct {
	// APIKey is required for IsAvailable to report true.
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient resilience.Doer

	// Timeout bounds each upstream call (default: 10s).
	Timeout time.Duration

	// CacheTTL is the route cache lifetime (default: 5 minutes).
	CacheTTL time.Duration

	Registry *resilience.Registry
	Recorder traffic.Recorder
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Provider fetches flow items and traffic items for a route's bounding box.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient resilience.Doer
	cache      *traffic.RouteCache
	logger     zerolog.Logger
}

// New creates a HERE provider.
func New(cfg Config) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(traffic.ProviderHERE)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		clientCfg.CircuitBreaker.Logger = cfg.Logger
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Provider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		cache: traffic.NewRouteCache(traffic.CacheConfig{
			Provider:     traffic.ProviderHERE,
			TTL:          cfg.CacheTTL,
			FetchTimeout: cfg.Timeout,
			Now:          cfg.Now,
			Recorder:     cfg.Recorder,
		}),
		logger: cfg.Logger.With().Str("provider", traffic.ProviderHERE).Logger(),
	}
}

// Name returns the provider key.
func (p *Provider) Name() string {
	return traffic.ProviderHERE
}

// IsAvailable reports whether an API key is configured.
func (p *Provider) IsAvailable() bool {
	return p.apiKey != ""
}

// FetchTrafficData returns cached data for routeID or queries HERE. Upstream
// failures yield fallback data; the error is always nil.
func (p *Provider) FetchTrafficData(ctx context.Context, coords []traffic.Coordinate, routeID string) (*traffic.Data, error) {
	data, _ := p.cache.GetOrFetch(ctx, routeID, func(ctx context.Context) *traffic.Data {
		return p.fetch(ctx, coords, routeID)
	})
	return data, nil
}

// CacheStats describes the route cache.
func (p *Provider) CacheStats() traffic.CacheStats {
	return p.cache.Stats()
}

// ClearCache drops every cached route.
func (p *Provider) ClearCache() {
	p.cache.Clear()
}

func (p *Provider) fetch(ctx context.Context, coords []traffic.Coordinate, routeID string) *traffic.Data {
	box, ok := traffic.BoundingBox(coords)
	if !ok {
		p.logger.Warn().Err(errNoCoordinates).Str("route_id", routeID).Msg("serving fallback traffic data")
		return traffic.EmptyData(DisplayName, routeID, p.cache.Now())
	}

	var (
		flows     []traffic.Flow
		incidents []traffic.Incident
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		flows, err = p.fetchFlows(gctx, box)
		return err
	})
	g.Go(func() error {
		var err error
		incidents, err = p.fetchIncidents(gctx, box)
		return err
	})

	if err := g.Wait(); err != nil {
		msg := err.Error()
		if p.apiKey != "" {
			msg = strings.ReplaceAll(msg, p.apiKey, "REDACTED")
		}
		p.logger.Error().Str("error", msg).Str("route_id", routeID).Msg("failed to fetch HERE traffic data")
		return traffic.EmptyData(DisplayName, routeID, p.cache.Now())
	}

	return traffic.Assemble(DisplayName, routeID, flows, incidents, p.cache.Now(), p.cache.TTL())
}
