package routing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/trafficeta/trafficeta/pkg/polyline"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// CacheTTL is how long a route is reused (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the cell size in degrees (default: 0.01, about 1 km).
	// Trips whose endpoints fall in the same cells share a route.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving an expired route on provider errors
	// (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	Now func() time.Time
}

// Service caches routes by endpoint grid cell.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	now             func() time.Time

	mu    sync.RWMutex
	cache map[string]*cachedRoute
	group singleflight.Group
}

type cachedRoute struct {
	route     *Route
	fetchedAt time.Time
	expiresAt time.Time
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

// NewService creates a routing service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger.With().Str("component", "routing").Logger(),
		cacheTTL:        cfg.CacheTTL,
		cacheGridSize:   cfg.CacheGridSize,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		now:             cfg.Now,
		cache:           make(map[string]*cachedRoute),
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	if s.cacheGridSize <= 0 {
		s.cacheGridSize = 0.01
	}
	if s.staleIfErrorTTL <= 0 {
		s.staleIfErrorTTL = 15 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Directions returns the driving route from origin to dest.
func (s *Service) Directions(ctx context.Context, origin, dest polyline.Point) (*Route, error) {
	if err := ValidatePoint(origin); err != nil {
		return nil, err
	}
	if err := ValidatePoint(dest); err != nil {
		return nil, err
	}

	key := s.cacheKey(origin, dest)
	if route, ok := s.fresh(key); ok {
		return route, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if route, ok := s.fresh(key); ok {
			return route, nil
		}
		return s.fetch(ctx, origin, dest, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Route), nil
}

func (s *Service) fresh(key string) (*Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.cache[key]
	if !ok || !s.now().Before(cached.expiresAt) {
		return nil, false
	}
	return cached.route, true
}

func (s *Service) fetch(ctx context.Context, origin, dest polyline.Point, key string) (*Route, error) {
	s.logger.Debug().
		Str("cache_key", key).
		Str("provider", s.provider.Name()).
		Msg("fetching route from provider")

	route, err := s.provider.Directions(ctx, origin, dest)
	now := s.now()
	if err != nil {
		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && now.Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().Err(err).
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale route due to provider error")
			return cached.route, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = &cachedRoute{route: route, fetchedAt: now, expiresAt: now.Add(s.cacheTTL)}
	for k, c := range s.cache {
		if now.After(c.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	return route, nil
}

// cacheKey snaps both endpoints to the grid.
func (s *Service) cacheKey(origin, dest polyline.Point) string {
	cell := func(v float64) int64 { return int64(math.Floor(v / s.cacheGridSize)) }
	return fmt.Sprintf("%d,%d:%d,%d", cell(origin.Lat), cell(origin.Lon), cell(dest.Lat), cell(dest.Lon))
}

// InvalidateCache clears all cached routes.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedRoute)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	stats := CacheStats{TotalEntries: len(s.cache), Provider: s.provider.Name()}
	for _, c := range s.cache {
		switch {
		case now.Before(c.expiresAt):
			stats.FreshEntries++
		case now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)):
			stats.StaleEntries++
		}
	}
	return stats
}
