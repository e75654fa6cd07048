package models

// WeatherAuto asks the service to look the weather up at the trip origin.
const WeatherAuto = "auto"

// Weather sources reported in ETAResponse.
const (
	WeatherSourceRequest = "request"
	WeatherSourceLookup  = "lookup"
	WeatherSourceDefault = "default"
)

// ETARequest is the body of POST /v1/eta:compute. Either BaseMinutes or a
// pair of endpoints (Origin and Destination, or a Route) must be present.
type ETARequest struct {
	BaseMinutes *float64 `json:"baseMinutes,omitempty" validate:"omitempty,gt=0,lte=2880"`

	Origin        *Point   `json:"origin,omitempty"`
	Destination   *Point   `json:"destination,omitempty"`
	RoutedMinutes *float64 `json:"routedMinutes,omitempty" validate:"omitempty,gt=0,lte=2880"`

	Conditions  ConditionsInput `json:"conditions"`
	Route       *RouteInput     `json:"route,omitempty"`
	LiveTraffic bool            `json:"liveTraffic"`
}

// ConditionsInput carries one value per condition type. Values outside the
// catalog are accepted and reported back as unknown.
type ConditionsInput struct {
	Weather        string `json:"weather" validate:"required"`
	TimeOfDay      string `json:"time_of_day" validate:"required"`
	DayType        string `json:"day_type" validate:"required"`
	RoadProblem    string `json:"road_problem" validate:"required"`
	PoliceActivity string `json:"police_activity" validate:"required"`
	DrivingHistory string `json:"driving_history" validate:"required"`
}

// RouteInput is the route used for live traffic. Coordinates win over
// Polyline when both are set.
type RouteInput struct {
	ID          string  `json:"id,omitempty" validate:"omitempty,max=128"`
	Coordinates []Point `json:"coordinates,omitempty" validate:"omitempty,dive"`
	Polyline    string  `json:"polyline,omitempty"`
}

// ETAResponse is the body returned by POST /v1/eta:compute.
type ETAResponse struct {
	BaseMinutes            float64  `json:"baseMinutes"`
	AdjustedMinutes        float64  `json:"adjustedMinutes"`
	Multiplier             float64  `json:"multiplier"`
	TotalInflationPercent  float64  `json:"totalInflationPercent"`
	AdditivePenaltyMinutes float64  `json:"additivePenaltyMinutes"`
	TrafficIntegrated      bool     `json:"trafficIntegrated"`
	ModelType              string   `json:"modelType"`
	UnknownConditions      []string `json:"unknownConditions,omitempty"`

	Conditions    ConditionsInput `json:"conditions"`
	WeatherSource string          `json:"weatherSource"`
	RouteID       string          `json:"routeId,omitempty"`

	Baseline  *Baseline         `json:"baseline,omitempty"`
	Traffic   TrafficConditions `json:"traffic"`
	Marginals Marginals         `json:"marginals"`
	Breakdown Breakdown         `json:"breakdown"`

	ComputedAt Timestamp `json:"computedAt"`
}

// Baseline describes how BaseMinutes was estimated from endpoints.
type Baseline struct {
	DistanceKm          float64  `json:"distanceKm"`
	RoutedMinutes       *float64 `json:"routedMinutes,omitempty"`
	HaversineMinutes    float64  `json:"haversineMinutes"`
	NormalizedMinutes   float64  `json:"normalizedMinutes"`
	NormalizationFactor float64  `json:"normalizationFactor"`

	// RoutingProvider names the routing engine that supplied RoutedMinutes
	// when the caller did not.
	RoutingProvider string `json:"routingProvider,omitempty"`
}

// TrafficConditions is the live traffic picture the model saw.
type TrafficConditions struct {
	LiveTrafficEnabled bool              `json:"liveTrafficEnabled"`
	JamFactor          float64           `json:"jamFactor"`
	IncidentCount      int               `json:"incidentCount"`
	AverageSpeedKmh    float64           `json:"averageSpeedKmh"`
	Provider           string            `json:"provider"`
	LastUpdated        *Timestamp        `json:"lastUpdated,omitempty"`
	Incidents          []IncidentSummary `json:"incidents,omitempty"`
}

// IncidentSummary is one incident on the route.
type IncidentSummary struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
}

// Marginals are display labels for the multiplier.
type Marginals struct {
	Traffic    string `json:"traffic"`
	Conditions string `json:"conditions"`
	RouteBias  string `json:"routeBias"`
}

// Breakdown explains the multiplier.
type Breakdown struct {
	Contributions []Contribution `json:"contributions"`
	Duration      DurationInfo   `json:"duration"`
	Cap           CapInfo        `json:"cap"`
	Additive      AdditiveInfo   `json:"additive"`
	Final         FinalInfo      `json:"final"`
}

// Contribution is one factor's weighted share of the multiplier.
type Contribution struct {
	Factor        string  `json:"factor"`
	Value         string  `json:"value"`
	RawImpact     float64 `json:"rawImpact"`
	ContextWeight float64 `json:"contextWeight"`
	Dampening     float64 `json:"dampening"`
	ScaledImpact  float64 `json:"scaledImpact"`
	Rank          int     `json:"rank"`
	Weight        float64 `json:"weight"`
	Contribution  float64 `json:"contribution"`
	Percent       float64 `json:"percent"`
}

// DurationInfo describes duration-aware scaling.
type DurationInfo struct {
	Category         string  `json:"category"`
	ScalingFactor    float64 `json:"scalingFactor"`
	DampeningApplied bool    `json:"dampeningApplied"`
}

// CapInfo describes the severity cap and absolute bounds.
type CapInfo struct {
	Band                      string  `json:"band"`
	Cap                       float64 `json:"cap"`
	CapApplied                bool    `json:"capApplied"`
	BoundsApplied             bool    `json:"boundsApplied"`
	InflationBeforeCapPercent float64 `json:"inflationBeforeCapPercent"`
}

// AdditiveInfo describes flat per-hour penalties.
type AdditiveInfo struct {
	TotalMinutes float64        `json:"totalMinutes"`
	PerHour      float64        `json:"perHour"`
	Items        []AdditiveItem `json:"items,omitempty"`
}

// AdditiveItem is one flat penalty.
type AdditiveItem struct {
	Factor  string  `json:"factor"`
	Value   string  `json:"value"`
	PerHour float64 `json:"perHour"`
	Minutes float64 `json:"minutes"`
}

// FinalInfo holds intermediate totals.
type FinalInfo struct {
	ImpactMultiplier float64 `json:"impactMultiplier"`
	CombinedImpact   float64 `json:"combinedImpact"`
	AdditiveFraction float64 `json:"additiveFraction"`
	ClampedInflation float64 `json:"clampedInflation"`
	Multiplier       float64 `json:"multiplier"`
}
