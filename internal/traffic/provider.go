// Package traffic defines live-traffic data types, the provider contract, the
// per-provider route cache and the Manager that selects and fails over
// between providers.
package traffic

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Provider is a source of traffic data for a route.
//
// FetchTrafficData must not fail on upstream problems: a network, timeout or
// parse failure yields EmptyData for the route. A returned error or a panic is
// a contract violation that the Manager recovers from by switching providers.
type Provider interface {
	// Name is the provider key used in priority lists, e.g. "tomtom".
	Name() string

	// IsAvailable reports whether the provider is configured. It never does I/O.
	IsAvailable() bool

	// FetchTrafficData returns traffic data for the route, served from the
	// provider's cache while unexpired.
	FetchTrafficData(ctx context.Context, coords []Coordinate, routeID string) (*Data, error)

	// CacheStats describes the provider's route cache.
	CacheStats() CacheStats

	// ClearCache drops every cached route.
	ClearCache()
}

// EmptyData is the substitute a provider returns when a fetch fails.
func EmptyData(displayName, routeID string, now time.Time) *Data {
	return &Data{
		RouteID:          routeID,
		Flows:            []Flow{},
		Incidents:        []Incident{},
		OverallJamFactor: 0,
		AverageSpeedKmh:  DefaultSpeedKmh,
		IncidentCount:    0,
		LastUpdated:      now,
		Provider:         displayName + fallbackNameSuffix,
		CacheUntil:       now.Add(FallbackCacheTTL),
	}
}

// Assemble builds Data from flows and incidents using confidence-weighted
// aggregation. ttl sets the cache expiry relative to now.
func Assemble(displayName, routeID string, flows []Flow, incidents []Incident, now time.Time, ttl time.Duration) *Data {
	if flows == nil {
		flows = []Flow{}
	}
	if incidents == nil {
		incidents = []Incident{}
	}
	return &Data{
		RouteID:          routeID,
		Flows:            flows,
		Incidents:        incidents,
		OverallJamFactor: OverallJamFactor(flows),
		AverageSpeedKmh:  AverageSpeed(flows),
		IncidentCount:    len(incidents),
		LastUpdated:      now,
		Provider:         displayName,
		CacheUntil:       now.Add(ttl),
	}
}

// OverallJamFactor is the confidence-weighted mean jam factor, clamped to
// [0, 1]. No flows, or no total confidence, gives 0.
func OverallJamFactor(flows []Flow) float64 {
	var weighted, total float64
	for _, f := range flows {
		weighted += f.JamFactor * f.Confidence
		total += f.Confidence
	}
	if total <= 0 {
		return 0
	}
	return clamp(weighted/total, 0, 1)
}

// AverageSpeed is the confidence-weighted mean speed in km/h. No flows, no
// total confidence or a non-positive mean gives DefaultSpeedKmh.
func AverageSpeed(flows []Flow) float64 {
	var weighted, total float64
	for _, f := range flows {
		weighted += f.SpeedKmh * f.Confidence
		total += f.Confidence
	}
	if total <= 0 {
		return DefaultSpeedKmh
	}
	avg := weighted / total
	if avg <= 0 || math.IsNaN(avg) {
		return DefaultSpeedKmh
	}
	return avg
}

// Box is a lat/lon bounding box.
type Box struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// String formats the box as "minLat,minLon,maxLat,maxLon".
func (b Box) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// BoundingBox returns the smallest box containing coords. ok is false for an
// empty slice.
func BoundingBox(coords []Coordinate) (box Box, ok bool) {
	if len(coords) == 0 {
		return Box{}, false
	}
	box = Box{MinLat: coords[0].Lat, MinLon: coords[0].Lon, MaxLat: coords[0].Lat, MaxLon: coords[0].Lon}
	for _, c := range coords[1:] {
		box.MinLat = math.Min(box.MinLat, c.Lat)
		box.MinLon = math.Min(box.MinLon, c.Lon)
		box.MaxLat = math.Max(box.MaxLat, c.Lat)
		box.MaxLon = math.Max(box.MaxLon, c.Lon)
	}
	return box, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
