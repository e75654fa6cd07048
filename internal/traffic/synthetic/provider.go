// Package synthetic provides a traffic.Provider that fabricates plausible
// traffic without network access. It is always available.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/internal/traffic"
)

// DisplayName labels data produced by this provider.
const DisplayName = "Synthetic"

var (
	incidentTypes = []traffic.IncidentType{
		traffic.IncidentAccident,
		traffic.IncidentConstruction,
		traffic.IncidentCongestion,
		traffic.IncidentWeather,
	}
	severities = []traffic.Severity{
		traffic.SeverityLow,
		traffic.SeverityMedium,
		traffic.SeverityHigh,
	}
)

// Config holds configuration for the synthetic provider.
type Config struct {
	// CacheTTL is the route cache lifetime (default: 5 minutes).
	CacheTTL time.Duration

	// Source seeds the generator. Nil uses a time-seeded source.
	Source rand.Source

	Recorder traffic.Recorder
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Provider generates flows biased by hour of day and incidents with a
// probability proportional to route length.
type Provider struct {
	cache  *traffic.RouteCache
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a synthetic provider.
func New(cfg Config) *Provider {
	src := cfg.Source
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Provider{
		cache: traffic.NewRouteCache(traffic.CacheConfig{
			Provider: traffic.ProviderSynthetic,
			TTL:      cfg.CacheTTL,
			Now:      cfg.Now,
			Recorder: cfg.Recorder,
		}),
		logger: cfg.Logger.With().Str("provider", traffic.ProviderSynthetic).Logger(),
		rng:    rand.New(src), //nolint:gosec // synthetic data, not security sensitive
	}
}

// Name returns the provider key.
func (p *Provider) Name() string {
	return traffic.ProviderSynthetic
}

// IsAvailable always reports true.
func (p *Provider) IsAvailable() bool {
	return true
}

// FetchTrafficData returns cached data for routeID or generates new data.
func (p *Provider) FetchTrafficData(ctx context.Context, coords []traffic.Coordinate, routeID string) (*traffic.Data, error) {
	data, _ := p.cache.GetOrFetch(ctx, routeID, func(context.Context) *traffic.Data {
		return p.generate(coords, routeID)
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

func (p *Provider) generate(coords []traffic.Coordinate, routeID string) *traffic.Data {
	now := p.cache.Now()

	p.mu.Lock()
	flows := p.flows(len(coords), now)
	incidents := p.incidents(coords, now)
	p.mu.Unlock()

	p.logger.Debug().
		Str("route_id", routeID).
		Int("segments", len(flows)).
		Int("incidents", len(incidents)).
		Msg("generated synthetic traffic")

	return traffic.Assemble(DisplayName, routeID, flows, incidents, now, p.cache.TTL())
}

// flows must be called with p.mu held.
func (p *Provider) flows(points int, now time.Time) []traffic.Flow {
	segments := points / 5
	if segments < 1 {
		segments = 1
	}
	if segments > 10 {
		segments = 10
	}

	base := p.baseJam(now.Hour())
	flows := make([]traffic.Flow, 0, segments)
	for i := 0; i < segments; i++ {
		position := float64(i)/float64(segments)*0.3 + 0.7
		jam := clamp(base*position+p.uniform(-0.1, 0.1), 0, 1)
		free := p.uniform(80, 120)
		flows = append(flows, traffic.Flow{
			SegmentID:        fmt.Sprintf("synthetic_segment_%d", i),
			SpeedKmh:         math.Max(10, free*(1-jam*0.7)),
			FreeFlowSpeedKmh: free,
			JamFactor:        jam,
			Confidence:       p.uniform(0.7, 0.95),
			Timestamp:        now,
		})
	}
	return flows
}

// incidents must be called with p.mu held.
func (p *Provider) incidents(coords []traffic.Coordinate, now time.Time) []traffic.Incident {
	points := len(coords)
	if points == 0 {
		return nil
	}

	probability := math.Min(0.3, float64(points)/100)
	if p.rng.Float64() >= probability {
		return nil
	}

	maxCount := points / 20
	if maxCount > 3 {
		maxCount = 3
	}
	if maxCount < 1 {
		maxCount = 1
	}
	count := 1 + p.rng.Intn(maxCount)

	incidents := make([]traffic.Incident, 0, count)
	for i := 0; i < count; i++ {
		kind := incidentTypes[p.rng.Intn(len(incidentTypes))]
		incidents = append(incidents, traffic.Incident{
			ID:           fmt.Sprintf("synthetic_incident_%d", i),
			Type:         kind,
			Severity:     severities[p.rng.Intn(len(severities))],
			Description:  fmt.Sprintf("Synthetic %s incident", kind),
			Location:     coords[p.rng.Intn(points)],
			AffectedRoad: fmt.Sprintf("Road %d", i+1),
			StartTime:    now.Add(-time.Duration(10+p.rng.Intn(111)) * time.Minute),
			Confidence:   p.uniform(0.8, 0.95),
		})
	}
	return incidents
}

// baseJam biases congestion toward rush hours.
func (p *Provider) baseJam(hour int) float64 {
	switch {
	case hour >= 7 && hour <= 9:
		return p.uniform(0.4, 0.7)
	case hour >= 16 && hour <= 19:
		return p.uniform(0.5, 0.8)
	case hour >= 22 || hour <= 5:
		return p.uniform(0.0, 0.2)
	default:
		return p.uniform(0.1, 0.4)
	}
}

func (p *Provider) uniform(lo, hi float64) float64 {
	return lo + p.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
