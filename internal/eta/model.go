// Package eta turns a baseline travel time and a set of trip conditions into
// an adjusted travel time. The calculation is pure: no I/O, no shared mutable
// state, and identical inputs always give identical results.
package eta

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/internal/conditions"
	"github.com/trafficeta/trafficeta/internal/traffic"
)

// ErrInvalidBaseMinutes is returned when the baseline is not a positive finite number.
var ErrInvalidBaseMinutes = errors.New("base minutes must be a positive finite number")

// Model computes normalized, duration-aware ETAs.
type Model struct {
	cfg    Config
	logger zerolog.Logger
}

// NewModel validates cfg and returns a model. A Model is safe for concurrent use.
func NewModel(cfg Config, logger zerolog.Logger) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg, logger: logger.With().Str("component", "eta").Logger()}, nil
}

// Config returns the model's configuration.
func (m *Model) Config() Config {
	return m.cfg
}

// Calculate applies the conditions and optional live traffic to baseMinutes.
// tc may be nil; it only takes part when LiveTrafficEnabled is set.
func (m *Model) Calculate(baseMinutes float64, set conditions.Set, tc *traffic.Conditions) (*Result, error) {
	if baseMinutes <= 0 || math.IsNaN(baseMinutes) || math.IsInf(baseMinutes, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseMinutes, baseMinutes)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	unknown := set.Unknown()
	if len(unknown) > 0 {
		ev := m.logger.Warn()
		for _, t := range unknown {
			ev = ev.Str(string(t), set.Get(t))
		}
		ev.Msg("unknown condition values treated as zero impact")
	}

	live := tc != nil && tc.LiveTrafficEnabled

	contributions := m.weightedImpacts(set)

	dampening := 1.0
	if live {
		dampening = m.cfg.ManualDampening
		for i := range contributions {
			contributions[i].Dampening = dampening
		}
		contributions = append(contributions, Contribution{
			Factor:        FactorLiveTraffic,
			Value:         tc.Provider,
			RawImpact:     m.trafficImpact(tc),
			ContextWeight: 1,
			Dampening:     1,
		})
	}

	category, scale := m.durationScaling(baseMinutes)
	for i := range contributions {
		c := &contributions[i]
		c.ScaledImpact = c.RawImpact * c.ContextWeight * c.Dampening * scale
	}

	combined := m.diminish(contributions)

	additive := m.additivePenalty(baseMinutes, set)
	additiveFraction := additive.TotalMinutes / baseMinutes

	inflation := combined + additiveFraction
	band, limit := m.band(inflation)
	clamped := clamp(inflation, -limit, limit)

	multiplier := clamp(1+clamped, m.cfg.MinMultiplier, m.cfg.MaxMultiplier)

	for i := range contributions {
		contributions[i].Percent = contributions[i].Contribution * 100
	}

	result := &Result{
		BaseMinutes:            baseMinutes,
		AdjustedMinutes:        baseMinutes * multiplier,
		Multiplier:             multiplier,
		TotalInflationPercent:  (multiplier - 1) * 100,
		AdditivePenaltyMinutes: additive.TotalMinutes,
		TrafficIntegrated:      live,
		ModelType:              ModelType,
		UnknownConditions:      unknown,
		Breakdown: Breakdown{
			Contributions: contributions,
			Duration: DurationInfo{
				Category:         category,
				ScalingFactor:    scale,
				DampeningApplied: baseMinutes > m.cfg.ShortTripMinutes,
			},
			Cap: CapInfo{
				Band:                      band,
				Cap:                       limit,
				CapApplied:                clamped != inflation,
				BoundsApplied:             multiplier != 1+clamped,
				InflationBeforeCapPercent: inflation * 100,
			},
			Additive: additive,
			Final: FinalInfo{
				ImpactMultiplier: 1 + combined,
				CombinedImpact:   combined,
				AdditiveFraction: additiveFraction,
				ClampedInflation: clamped,
				Multiplier:       multiplier,
			},
		},
	}

	m.logger.Debug().
		Float64("base_minutes", baseMinutes).
		Float64("multiplier", multiplier).
		Str("band", band).
		Bool("traffic", live).
		Msg("eta calculated")

	return result, nil
}

// weightedImpacts looks up each condition's base impact and its context
// weight. Weights stack multiplicatively and are applied once.
func (m *Model) weightedImpacts(set conditions.Set) []Contribution {
	peak := set.IsPeak()
	types := conditions.Types()
	out := make([]Contribution, 0, len(types)+1)

	for _, t := range types {
		value := set.Get(t)
		impact, _ := conditions.Impact(t, value)

		weight := 1.0
		if t == conditions.TypeWeather && impact > 0 && set.TimeOfDay == conditions.TimeNight {
			weight *= m.cfg.NightWeatherWeight
		}
		if t == conditions.TypeRoadProblem && peak &&
			(value == conditions.RoadConstruction || value == conditions.RoadAccident) {
			weight *= m.cfg.UrbanRoadWeight
		}
		if t != conditions.TypeTimeOfDay && peak && impact > 0 {
			weight *= m.cfg.PeakTimeWeight
		}

		out = append(out, Contribution{
			Factor:        t,
			Value:         value,
			RawImpact:     impact,
			ContextWeight: weight,
			Dampening:     1,
		})
	}
	return out
}

// trafficImpact converts live traffic into a fractional impact in
// [0, TrafficMaxImpact].
func (m *Model) trafficImpact(tc *traffic.Conditions) float64 {
	impact := clamp(tc.JamFactor, 0, 1) * m.cfg.TrafficJamWeight
	if tc.IncidentCount > 0 {
		impact += math.Min(m.cfg.TrafficIncidentCap, float64(tc.IncidentCount)*m.cfg.TrafficIncidentStep)
	}
	if tc.AverageSpeedKmh > 0 && tc.AverageSpeedKmh < m.cfg.TrafficReferenceKmh {
		impact += (1 - tc.AverageSpeedKmh/m.cfg.TrafficReferenceKmh) * m.cfg.TrafficSpeedWeight
	}
	return clamp(impact, 0, m.cfg.TrafficMaxImpact)
}

// durationScaling returns the fraction of each impact retained for a trip of
// the given length. It is 1 up to the short breakpoint. Medium trips climb
// from ShortToMediumSlope back to 1 at the medium breakpoint. Past it the
// scale restarts at ShortToMediumSlope and falls to MediumToLongSlope at the
// long breakpoint, where it stays.
func (m *Model) durationScaling(minutes float64) (string, float64) {
	c := m.cfg
	switch {
	case minutes <= c.ShortTripMinutes:
		return DurationShort, 1
	case minutes <= c.MediumTripMinutes:
		progress := (minutes - c.ShortTripMinutes) / (c.MediumTripMinutes - c.ShortTripMinutes)
		return DurationMedium, c.ShortToMediumSlope + (1-c.ShortToMediumSlope)*progress
	default:
		progress := math.Min(1, (minutes-c.MediumTripMinutes)/(c.LongTripMinutes-c.MediumTripMinutes))
		return DurationLong, c.MediumToLongSlope + (c.ShortToMediumSlope-c.MediumToLongSlope)*(1-progress)
	}
}

// diminish orders contributions by decreasing |ScaledImpact| (ties keep
// catalog order) and sums them with geometrically decreasing weights.
func (m *Model) diminish(contributions []Contribution) float64 {
	sort.SliceStable(contributions, func(i, j int) bool {
		return math.Abs(contributions[i].ScaledImpact) > math.Abs(contributions[j].ScaledImpact)
	})

	total := 0.0
	for rank := range contributions {
		c := &contributions[rank]
		c.Rank = rank
		c.Weight = math.Pow(m.cfg.DiminishingFactor, float64(rank))
		c.Contribution = c.ScaledImpact * c.Weight
		total += c.Contribution
	}
	return total
}

// additivePenalty computes flat per-hour delays. It reads the conditions
// directly and is not affected by live traffic dampening.
func (m *Model) additivePenalty(baseMinutes float64, set conditions.Set) AdditiveInfo {
	hours := baseMinutes / 60
	var info AdditiveInfo

	add := func(t conditions.Type, perHour float64) {
		if perHour == 0 {
			return
		}
		info.Items = append(info.Items, AdditiveItem{
			Factor:  t,
			Value:   set.Get(t),
			PerHour: perHour,
			Minutes: perHour * hours,
		})
		info.PerHour += perHour
	}

	switch set.Weather {
	case conditions.WeatherRain, conditions.WeatherStorm, conditions.WeatherSnow:
		add(conditions.TypeWeather, m.cfg.WeatherAdditivePerHour)
	}
	if set.IsPeak() {
		add(conditions.TypeTimeOfDay, m.cfg.PeakAdditivePerHour)
	}
	switch set.RoadProblem {
	case conditions.RoadAccident, conditions.RoadConstruction:
		add(conditions.TypeRoadProblem, m.cfg.RoadAdditivePerHour)
	}

	info.TotalMinutes = info.PerHour * hours
	return info
}

// band classifies |inflation| and returns the band with its cap.
func (m *Model) band(inflation float64) (string, float64) {
	magnitude := math.Abs(inflation)
	switch {
	case magnitude <= m.cfg.LightBandLimit:
		return BandLight, m.cfg.LightCap
	case magnitude <= m.cfg.ModerateBandLimit:
		return BandModerate, m.cfg.ModerateCap
	default:
		return BandHeavy, m.cfg.HeavyCap
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
