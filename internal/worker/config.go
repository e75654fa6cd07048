// Package worker runs the background refresh loop: it re-evaluates the
// active traffic provider and keeps the weather cache warm for busy areas.
package worker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Point is a location whose weather is kept warm.
type Point struct {
	Lat float64
	Lon float64
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Interval is the tick period of Start (default: 60s).
	Interval time.Duration

	// Concurrency bounds parallel weather lookups (default: 3).
	Concurrency int

	// Timeout bounds each weather lookup (default: 30s).
	Timeout time.Duration

	// WarmPoints are looked up on every run. Empty disables warming.
	WarmPoints []Point
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:    60 * time.Second,
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// ParsePoints reads "lat:lon" pairs such as "52.37:4.90".
func ParsePoints(values []string) ([]Point, error) {
	points := make([]Point, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		latStr, lonStr, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("point %q: want lat:lon", v)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("point %q: invalid latitude", v)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("point %q: invalid longitude", v)
		}
		points = append(points, Point{Lat: lat, Lon: lon})
	}
	return points, nil
}
