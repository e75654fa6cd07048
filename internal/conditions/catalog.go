// Package conditions defines the categorical trip conditions understood by the
// ETA model and the base impact each value carries.
package conditions

import "sort"

// Type names one of the six condition families.
type Type string

const (
	TypeWeather        Type = "weather"
	TypeTimeOfDay      Type = "time_of_day"
	TypeDayType        Type = "day_type"
	TypeRoadProblem    Type = "road_problem"
	TypePoliceActivity Type = "police_activity"
	TypeDrivingHistory Type = "driving_history"
)

// Weather values.
const (
	WeatherClear  = "clear"
	WeatherCloudy = "cloudy"
	WeatherRain   = "rain"
	WeatherStorm  = "storm"
	WeatherSnow   = "snow"
)

// Time-of-day values.
const (
	TimeNight       = "night"
	TimeMorningPeak = "morning_peak"
	TimeMidday      = "midday"
	TimeEveningPeak = "evening_peak"
)

// Day-type values.
const (
	DayWeekday = "weekday"
	DayWeekend = "weekend"
	DayHoliday = "holiday"
)

// Road-problem values.
const (
	RoadNone         = "none"
	RoadAccident     = "accident"
	RoadConstruction = "construction"
	RoadClosure      = "closure"
)

// Police-activity values.
const (
	PoliceLow    = "low"
	PoliceMedium = "medium"
	PoliceHigh   = "high"
)

// Driving-history values.
const (
	DrivingCalm       = "calm"
	DrivingNormal     = "normal"
	DrivingAggressive = "aggressive"
)

// entry is one enumeration value with its base impact and severity level.
type entry struct {
	value    string
	impact   float64
	severity int
}

// catalog lists every type in canonical order. Values keep declaration order,
// which is also the order of increasing severity for weather.
var catalog = []struct {
	typ     Type
	entries []entry
}{
	{TypeWeather, []entry{
		{WeatherClear, 0.0, 0},
		{WeatherCloudy, 0.05, 1},
		{WeatherRain, 0.15, 2},
		{WeatherStorm, 0.25, 3},
		{WeatherSnow, 0.30, 3},
	}},
	{TypeTimeOfDay, []entry{
		{TimeNight, -0.05, 0},
		{TimeMorningPeak, 0.20, 2},
		{TimeMidday, 0.0, 0},
		{TimeEveningPeak, 0.22, 2},
	}},
	{TypeDayType, []entry{
		{DayWeekday, 0.08, 1},
		{DayWeekend, -0.03, 0},
		{DayHoliday, 0.12, 1},
	}},
	{TypeRoadProblem, []entry{
		{RoadNone, 0.0, 0},
		{RoadAccident, 0.35, 3},
		{RoadConstruction, 0.20, 2},
		{RoadClosure, 0.45, 3},
	}},
	{TypePoliceActivity, []entry{
		{PoliceLow, 0.0, 0},
		{PoliceMedium, 0.05, 1},
		{PoliceHigh, 0.10, 2},
	}},
	// Aggressive driving is modeled as net time-saving.
	{TypeDrivingHistory, []entry{
		{DrivingCalm, -0.05, 0},
		{DrivingNormal, 0.0, 0},
		{DrivingAggressive, -0.08, 1},
	}},
}

var index = buildIndex()

func buildIndex() map[Type]map[string]entry {
	idx := make(map[Type]map[string]entry, len(catalog))
	for _, c := range catalog {
		m := make(map[string]entry, len(c.entries))
		for _, e := range c.entries {
			m[e.value] = e
		}
		idx[c.typ] = m
	}
	return idx
}

// Types returns the six condition types in canonical order.
func Types() []Type {
	out := make([]Type, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c.typ)
	}
	return out
}

// Values returns the allowed values for a type, or nil for an unknown type.
func Values(t Type) []string {
	for _, c := range catalog {
		if c.typ != t {
			continue
		}
		out := make([]string, 0, len(c.entries))
		for _, e := range c.entries {
			out = append(out, e.value)
		}
		return out
	}
	return nil
}

// Impact returns the signed base impact of a value as a fraction of trip
// duration. The second result is false when the type or value is unknown.
func Impact(t Type, value string) (float64, bool) {
	e, ok := index[t][value]
	if !ok {
		return 0, false
	}
	return e.impact, true
}

// Severity returns the 0..3 severity level of a value (0 for unknown values).
func Severity(t Type, value string) int {
	return index[t][value].severity
}

// IsKnown reports whether value belongs to the enumeration of t.
func IsKnown(t Type, value string) bool {
	_, ok := index[t][value]
	return ok
}

// Catalog is a serializable view of every type and its values with impacts.
type Catalog map[Type][]ValueInfo

// ValueInfo describes one enumeration value.
type ValueInfo struct {
	Value    string  `json:"value"`
	Impact   float64 `json:"impact"`
	Severity int     `json:"severity"`
}

// Describe returns the full catalog.
func Describe() Catalog {
	out := make(Catalog, len(catalog))
	for _, c := range catalog {
		infos := make([]ValueInfo, 0, len(c.entries))
		for _, e := range c.entries {
			infos = append(infos, ValueInfo{Value: e.value, Impact: e.impact, Severity: e.severity})
		}
		out[c.typ] = infos
	}
	return out
}

// SortedTypes returns the catalog keys sorted alphabetically.
func (c Catalog) SortedTypes() []Type {
	keys := make([]Type, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
