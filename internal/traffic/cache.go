package traffic

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const metricsOperation = "traffic_data"

var errFallbackServed = errors.New("fallback data served")

// Recorder receives cache and fetch metrics. telemetry.ProviderMetrics
// satisfies it.
type Recorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string, time.Duration, error) {}
func (nopRecorder) RecordCacheHit(string, string)                      {}
func (nopRecorder) RecordCacheMiss(string, string)                     {}

// CacheConfig configures a RouteCache.
type CacheConfig struct {
	// Provider labels metrics.
	Provider string

	// TTL is the lifetime of a successful fetch (default: 5 minutes).
	TTL time.Duration

	// FetchTimeout bounds one upstream fetch (default: 10 seconds).
	FetchTimeout time.Duration

	// Now overrides the clock for tests.
	Now func() time.Time

	// Recorder receives hit/miss and fetch metrics. Nil disables them.
	Recorder Recorder
}

// RouteCache is a provider's private route-id keyed cache. Each entry expires
// at its own Data.CacheUntil. Concurrent misses for the same route share one
// fetch.
type RouteCache struct {
	provider     string
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	recorder     Recorder

	mu           sync.Mutex
	entries      map[string]*Data
	lastRequests map[string]time.Time

	group singleflight.Group
}

// NewRouteCache creates an empty cache.
func NewRouteCache(cfg CacheConfig) *RouteCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	var rec Recorder = nopRecorder{}
	if cfg.Recorder != nil {
		rec = cfg.Recorder
	}
	return &RouteCache{
		provider:     cfg.Provider,
		ttl:          ttl,
		fetchTimeout: fetchTimeout,
		now:          now,
		recorder:     rec,
		entries:      make(map[string]*Data),
		lastRequests: make(map[string]time.Time),
	}
}

// TTL returns the lifetime applied to successful fetches.
func (c *RouteCache) TTL() time.Duration {
	return c.ttl
}

// Now returns the cache's current time.
func (c *RouteCache) Now() time.Time {
	return c.now()
}

// Get returns the unexpired entry for routeID.
func (c *RouteCache) Get(routeID string) (*Data, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(routeID)
}

func (c *RouteCache) getLocked(routeID string) (*Data, bool) {
	d, ok := c.entries[routeID]
	if !ok {
		return nil, false
	}
	if d.Expired(c.now()) {
		delete(c.entries, routeID)
		return nil, false
	}
	return d, true
}

// Put stores d under its RouteID.
func (c *RouteCache) Put(d *Data) {
	if d == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[d.RouteID] = d
	c.lastRequests[d.RouteID] = c.now()
}

// GetOrFetch returns the cached entry for routeID or calls fetch, caches its
// result and returns it. hit reports whether the entry came from the cache.
// fetch must not return nil.
//
// The result is shared by every caller waiting on the route, so fetch runs
// detached from ctx's cancellation and bounded by FetchTimeout instead.
func (c *RouteCache) GetOrFetch(ctx context.Context, routeID string, fetch func(ctx context.Context) *Data) (data *Data, hit bool) {
	if d, ok := c.Get(routeID); ok {
		c.recorder.RecordCacheHit(c.provider, metricsOperation)
		return d, true
	}
	c.recorder.RecordCacheMiss(c.provider, metricsOperation)

	v, _, _ := c.group.Do(routeID, func() (any, error) {
		// Another flight may have filled the entry between Get and Do.
		if d, ok := c.Get(routeID); ok {
			return d, nil
		}

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		start := time.Now()
		d := fetch(fctx)
		var err error
		if d == nil || d.IsFallback() {
			err = errFallbackServed
		}
		c.recorder.RecordRequest(c.provider, metricsOperation, time.Since(start), err)

		c.Put(d)
		return d, nil
	})

	d, _ := v.(*Data)
	return d, false
}

// Stats returns the cached route count, the TTL and per-route last request
// times.
func (c *RouteCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := make(map[string]time.Time, len(c.lastRequests))
	for k, v := range c.lastRequests {
		last[k] = v
	}
	return CacheStats{
		CachedRoutes:  len(c.entries),
		CacheDuration: c.ttl,
		LastRequests:  last,
	}
}

// Clear drops every entry.
func (c *RouteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Data)
	c.lastRequests = make(map[string]time.Time)
}
