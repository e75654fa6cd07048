// Package routing looks up driving routes so a trip given only by its
// endpoints gets a routed duration and geometry.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/trafficeta/trafficeta/pkg/polyline"
)

var (
	// ErrProviderUnavailable indicates the routing provider is down or its circuit is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no drivable route exists between the points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the provider quota is exhausted.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates a point outside WGS84 bounds.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Provider computes a driving route between two points.
type Provider interface {
	Directions(ctx context.Context, origin, dest polyline.Point) (*Route, error)
	Name() string
}

// Route is the fastest driving route between two points.
type Route struct {
	Geometry        []polyline.Point
	DistanceKm      float64
	DurationMinutes float64
	Provider        string
	FetchedAt       time.Time
}

// Error carries the provider's error code alongside a sentinel.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is transient.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// ValidatePoint checks WGS84 bounds.
func ValidatePoint(p polyline.Point) error {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
