// Package weather looks up current weather near a point and reduces it to a
// value of the weather trip condition.
package weather

import (
	"errors"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Observation is the current weather at a point.
type Observation struct {
	Lat float64
	Lon float64

	// Temperature in Celsius, wind speed in km/h.
	Temperature float64
	WindSpeed   float64

	// Code is the provider's raw condition code.
	Code int

	// Condition is a value of the weather trip condition (clear, cloudy,
	// rain, storm, snow).
	Condition   string
	Description string

	ObservedAt time.Time
	FetchedAt  time.Time

	// Stale is set when the observation is served past its TTL because the
	// provider failed.
	Stale bool
}

// CacheStats describes the service cache.
type CacheStats struct {
	Entries      int
	FreshEntries int
	Provider     string
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
