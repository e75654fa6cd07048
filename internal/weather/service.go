package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Provider fetches current weather for a location.
type Provider interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// CacheTTL is how long an observation is fresh (default: 10 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the cache cell size in degrees (default: 0.1).
	// Points in the same cell share an observation.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	Now func() time.Time
}

// Service provides cached weather lookups.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	now             func() time.Time

	mu    sync.RWMutex
	cache map[string]*cachedObservation
	group singleflight.Group
}

type cachedObservation struct {
	observation *Observation
	fetchedAt   time.Time
	expiresAt   time.Time
}

// NewService creates a weather service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger.With().Str("component", "weather").Logger(),
		cacheTTL:        cfg.CacheTTL,
		cacheGridSize:   cfg.CacheGridSize,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		now:             cfg.Now,
		cache:           make(map[string]*cachedObservation),
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 10 * time.Minute
	}
	if s.cacheGridSize <= 0 {
		s.cacheGridSize = 0.1
	}
	if s.staleIfErrorTTL <= 0 {
		s.staleIfErrorTTL = time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CurrentWeather returns the observation for the grid cell holding lat/lon.
func (s *Service) CurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	key := s.cacheKey(lat, lon)
	if obs, ok := s.fresh(key); ok {
		return obs, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if obs, ok := s.fresh(key); ok {
			return obs, nil
		}
		return s.fetch(ctx, lat, lon, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Observation), nil
}

// Condition returns the weather condition value at lat/lon.
func (s *Service) Condition(ctx context.Context, lat, lon float64) (string, error) {
	obs, err := s.CurrentWeather(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	return obs.Condition, nil
}

func (s *Service) fresh(key string) (*Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.cache[key]
	if !ok || !s.now().Before(cached.expiresAt) {
		return nil, false
	}
	return cached.observation, true
}

func (s *Service) fetch(ctx context.Context, lat, lon float64, key string) (*Observation, error) {
	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("provider", s.provider.Name()).
		Msg("fetching weather from provider")

	obs, err := s.provider.CurrentWeather(ctx, lat, lon)
	now := s.now()
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("failed to fetch weather")

		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && now.Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale weather data due to provider error")
			stale := *cached.observation
			stale.Stale = true
			return &stale, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	s.mu.Lock()
	s.cache[key] = &cachedObservation{
		observation: obs,
		fetchedAt:   now,
		expiresAt:   now.Add(s.cacheTTL),
	}
	s.evictLocked(now)
	s.mu.Unlock()

	return obs, nil
}

// evictLocked drops entries too old to be served even as stale data.
func (s *Service) evictLocked(now time.Time) {
	for key, cached := range s.cache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
		}
	}
}

// cacheKey snaps a point to its grid cell.
func (s *Service) cacheKey(lat, lon float64) string {
	cellLat := math.Floor(lat / s.cacheGridSize)
	cellLon := math.Floor(lon / s.cacheGridSize)
	return fmt.Sprintf("%d:%d", int64(cellLat), int64(cellLon))
}

// InvalidateCache clears all cached observations.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedObservation)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	fresh := 0
	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		}
	}
	return CacheStats{
		Entries:      len(s.cache),
		FreshEntries: fresh,
		Provider:     s.provider.Name(),
	}
}
