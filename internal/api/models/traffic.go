package models

// TrafficStatus is the body of GET /v1/traffic/status.
type TrafficStatus struct {
	Enabled        bool                    `json:"enabled"`
	ActiveProvider string                  `json:"activeProvider"`
	LastRefresh    *Timestamp              `json:"lastRefresh,omitempty"`
	Providers      []TrafficProviderStatus `json:"providers"`
}

// TrafficProviderStatus is one registered provider.
type TrafficProviderStatus struct {
	Name      string            `json:"name"`
	Available bool              `json:"available"`
	Cache     TrafficCacheStats `json:"cache"`
	Health    *ProviderHealth   `json:"health,omitempty"`
}

// TrafficCacheStats describes a provider's route cache.
type TrafficCacheStats struct {
	CachedRoutes         int                  `json:"cachedRoutes"`
	CacheDurationSeconds float64              `json:"cacheDurationSeconds"`
	LastRequests         map[string]Timestamp `json:"lastRequests,omitempty"`
}

// ProviderHealth is the circuit breaker view of an upstream.
type ProviderHealth struct {
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"failures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	LastError     string       `json:"lastError,omitempty"`
}

// CacheCleared is the body of POST /v1/traffic/cache:clear.
type CacheCleared struct {
	Cleared   []string  `json:"cleared"`
	ClearedAt Timestamp `json:"clearedAt"`
}
