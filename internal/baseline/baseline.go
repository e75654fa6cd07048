// Package baseline estimates the unadjusted travel time between two points,
// either from a routing engine's duration or from straight-line distance
// corrected by a calibrated factor.
package baseline

import (
	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/pkg/polyline"
)

// DefaultSpeedKmh is the assumed average speed for straight-line estimates.
const DefaultSpeedKmh = 80.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b polyline.Point) float64 {
	return polyline.DistanceKm(a, b)
}

// EstimateMinutes returns the straight-line travel time at speedKmh. A
// non-positive speed uses DefaultSpeedKmh.
func EstimateMinutes(a, b polyline.Point, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return HaversineKm(a, b) / speedKmh * 60
}

// Times is the outcome of one baseline computation.
type Times struct {
	DistanceKm          float64
	RoutedMinutes       *float64
	HaversineMinutes    float64
	NormalizedMinutes   float64
	NormalizationFactor float64
}

// Base returns the routed minutes when known, otherwise the normalized
// straight-line estimate.
func (t Times) Base() float64 {
	if t.RoutedMinutes != nil && *t.RoutedMinutes > 0 {
		return *t.RoutedMinutes
	}
	return t.NormalizedMinutes
}

// Config holds configuration for an Estimator.
type Config struct {
	SpeedKmh   float64
	Calibrator *Calibrator
	Logger     zerolog.Logger
}

// Estimator computes baselines. Routed durations from a trusted routing
// engine are fed back into its calibrator through Record.
type Estimator struct {
	speed      float64
	calibrator *Calibrator
	logger     zerolog.Logger
}

// NewEstimator creates an estimator. A nil Calibrator gets a default one.
func NewEstimator(cfg Config) *Estimator {
	if cfg.SpeedKmh <= 0 {
		cfg.SpeedKmh = DefaultSpeedKmh
	}
	if cfg.Calibrator == nil {
		cfg.Calibrator = NewCalibrator(DefaultMaxSamples, DefaultNormalizationFactor)
	}
	return &Estimator{
		speed:      cfg.SpeedKmh,
		calibrator: cfg.Calibrator,
		logger:     cfg.Logger,
	}
}

// Calibrator returns the estimator's calibrator.
func (e *Estimator) Calibrator() *Calibrator {
	return e.calibrator
}

// Compute estimates the baseline from origin to dest. When routedMinutes is
// known the factor is the observed ratio; otherwise the calibrated factor is
// used. Compute never changes the calibrator.
func (e *Estimator) Compute(origin, dest polyline.Point, routedMinutes *float64) Times {
	km := HaversineKm(origin, dest)
	hav := km / e.speed * 60

	t := Times{
		DistanceKm:       km,
		RoutedMinutes:    routedMinutes,
		HaversineMinutes: hav,
	}

	if routedMinutes != nil && *routedMinutes > 0 && hav > 0 {
		t.NormalizationFactor = *routedMinutes / hav
	} else {
		t.NormalizationFactor = e.calibrator.NormalizationFactor()
	}
	t.NormalizedMinutes = hav * t.NormalizationFactor

	e.logger.Debug().
		Float64("distance_km", km).
		Float64("haversine_minutes", hav).
		Float64("factor", t.NormalizationFactor).
		Msg("baseline computed")

	return t
}

// Record adds t as a calibration sample. Only durations produced by the
// routing engine belong here, never caller input. It reports whether the
// sample was kept.
func (e *Estimator) Record(t Times) bool {
	if t.RoutedMinutes == nil {
		return false
	}
	ok := e.calibrator.AddSample(t.HaversineMinutes, *t.RoutedMinutes)
	if !ok {
		e.logger.Debug().
			Float64("haversine_minutes", t.HaversineMinutes).
			Float64("routed_minutes", *t.RoutedMinutes).
			Msg("calibration sample rejected")
	}
	return ok
}
