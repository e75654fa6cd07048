package traffic

import (
	"errors"
	"time"
)

// Traffic errors.
var (
	ErrContractViolation = errors.New("traffic provider contract violation")
	ErrNilData           = errors.New("provider returned no traffic data")
)

// Default values used when a route has no usable flow samples.
const (
	DefaultSpeedKmh    = 60.0
	FallbackCacheTTL   = 60 * time.Second
	fallbackNameSuffix = " (fallback)"
)

// Provider keys.
const (
	ProviderTomTom    = "tomtom"
	ProviderHERE      = "here"
	ProviderSynthetic = "synthetic"
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Flow is one road-segment speed sample.
type Flow struct {
	SegmentID        string
	SpeedKmh         float64
	FreeFlowSpeedKmh float64
	JamFactor        float64 // 0 = free flow, 1 = gridlock
	Confidence       float64 // 0..1
	Timestamp        time.Time
}

// IncidentType classifies a traffic incident.
type IncidentType string

// Incident types.
const (
	IncidentAccident     IncidentType = "accident"
	IncidentConstruction IncidentType = "construction"
	IncidentClosure      IncidentType = "closure"
	IncidentWeather      IncidentType = "weather"
	IncidentCongestion   IncidentType = "congestion"
	IncidentUnknown      IncidentType = "unknown"
)

// Severity grades an incident.
type Severity string

// Incident severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Incident is a reported event affecting traffic on or near the route.
type Incident struct {
	ID           string
	Type         IncidentType
	Severity     Severity
	Description  string
	Location     Coordinate
	AffectedRoad string
	StartTime    time.Time
	EndTime      *time.Time
	Confidence   float64
}

// Data is the aggregate traffic picture for one route, as produced by a
// single provider. Values are read-only once returned.
type Data struct {
	RouteID          string
	Flows            []Flow
	Incidents        []Incident
	OverallJamFactor float64
	AverageSpeedKmh  float64
	IncidentCount    int
	LastUpdated      time.Time
	Provider         string
	CacheUntil       time.Time
}

// Expired reports whether the cache entry is past its expiry at now.
func (d *Data) Expired(now time.Time) bool {
	return !now.Before(d.CacheUntil)
}

// IsFallback reports whether d is a provider's empty substitute for a failed fetch.
func (d *Data) IsFallback() bool {
	n := len(d.Provider) - len(fallbackNameSuffix)
	return n >= 0 && d.Provider[n:] == fallbackNameSuffix
}

// IncidentSummary is the reduced incident view handed to the ETA model.
type IncidentSummary struct {
	Type        IncidentType
	Severity    Severity
	Description string
}

// Conditions is the projection of Data consumed by the ETA model.
type Conditions struct {
	LiveTrafficEnabled bool
	JamFactor          float64
	IncidentCount      int
	AverageSpeedKmh    float64
	Provider           string
	LastUpdated        *time.Time
	Incidents          []IncidentSummary
}

// DisabledConditions is the projection used when no traffic data exists.
func DisabledConditions() Conditions {
	return Conditions{
		LiveTrafficEnabled: false,
		AverageSpeedKmh:    DefaultSpeedKmh,
		Provider:           "none",
	}
}

// CacheStats describes a provider's route cache.
type CacheStats struct {
	CachedRoutes  int
	CacheDuration time.Duration
	LastRequests  map[string]time.Time
}
