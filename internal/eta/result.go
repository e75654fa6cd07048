package eta

import "github.com/trafficeta/trafficeta/internal/conditions"

// ModelType identifies the algorithm that produced a Result.
const ModelType = "normalized_duration_aware"

// FactorLiveTraffic names the pseudo-condition added when live traffic is blended in.
const FactorLiveTraffic conditions.Type = "live_traffic"

// Duration categories.
const (
	DurationShort  = "short"
	DurationMedium = "medium"
	DurationLong   = "long"
)

// Severity bands.
const (
	BandLight    = "light"
	BandModerate = "moderate"
	BandHeavy    = "heavy"
)

// Result is the outcome of one calculation.
type Result struct {
	BaseMinutes            float64
	AdjustedMinutes        float64
	Multiplier             float64
	TotalInflationPercent  float64
	AdditivePenaltyMinutes float64
	TrafficIntegrated      bool
	ModelType              string

	// UnknownConditions lists condition types whose value was not recognized
	// and therefore contributed nothing.
	UnknownConditions []conditions.Type

	Breakdown Breakdown
}

// Breakdown explains how the multiplier was reached.
type Breakdown struct {
	// Contributions are ordered by decreasing |ScaledImpact|, the order in
	// which diminishing weights were assigned.
	Contributions []Contribution
	Duration      DurationInfo
	Cap           CapInfo
	Additive      AdditiveInfo
	Final         FinalInfo
}

// Contribution is one factor's path through the pipeline.
type Contribution struct {
	Factor        conditions.Type
	Value         string
	RawImpact     float64
	ContextWeight float64
	// Dampening is the manual-condition factor applied when live traffic
	// is blended in (1 otherwise, and always 1 for the traffic factor).
	Dampening    float64
	ScaledImpact float64
	Rank         int
	Weight       float64
	Contribution float64
	Percent      float64
}

// DurationInfo describes duration-aware scaling.
type DurationInfo struct {
	Category         string
	ScalingFactor    float64
	DampeningApplied bool
}

// CapInfo describes the severity cap and absolute bounds.
type CapInfo struct {
	Band                      string
	Cap                       float64
	CapApplied                bool
	BoundsApplied             bool
	InflationBeforeCapPercent float64
}

// AdditiveInfo describes the flat per-hour penalties.
type AdditiveInfo struct {
	TotalMinutes float64
	PerHour      float64
	Items        []AdditiveItem
}

// AdditiveItem is one flat penalty.
type AdditiveItem struct {
	Factor  conditions.Type
	Value   string
	PerHour float64
	Minutes float64
}

// FinalInfo holds the intermediate totals.
type FinalInfo struct {
	// ImpactMultiplier is 1 plus the combined multiplicative impact, before
	// the additive penalty and caps.
	ImpactMultiplier float64
	CombinedImpact   float64
	AdditiveFraction float64
	ClampedInflation float64
	Multiplier       float64
}
