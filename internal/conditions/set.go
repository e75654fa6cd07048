package conditions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMissingCondition is returned when one of the six required keys is empty.
var ErrMissingCondition = errors.New("missing required condition")

// Set holds one value per condition type. It is built by the caller for each
// calculation and never mutated afterwards.
type Set struct {
	Weather        string `json:"weather" validate:"required"`
	TimeOfDay      string `json:"time_of_day" validate:"required"`
	DayType        string `json:"day_type" validate:"required"`
	RoadProblem    string `json:"road_problem" validate:"required"`
	PoliceActivity string `json:"police_activity" validate:"required"`
	DrivingHistory string `json:"driving_history" validate:"required"`
}

var validate = validator.New()

// Validate checks that every condition key is present. Values outside the
// enumerations are not errors; see Unknown.
func (s Set) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fieldType(fe.StructField()))
	}
	return fmt.Errorf("%w: %s", ErrMissingCondition, strings.Join(missing, ", "))
}

// Get returns the value for a condition type.
func (s Set) Get(t Type) string {
	switch t {
	case TypeWeather:
		return s.Weather
	case TypeTimeOfDay:
		return s.TimeOfDay
	case TypeDayType:
		return s.DayType
	case TypeRoadProblem:
		return s.RoadProblem
	case TypePoliceActivity:
		return s.PoliceActivity
	case TypeDrivingHistory:
		return s.DrivingHistory
	default:
		return ""
	}
}

// With returns a copy of s with the value for t replaced.
func (s Set) With(t Type, value string) Set {
	switch t {
	case TypeWeather:
		s.Weather = value
	case TypeTimeOfDay:
		s.TimeOfDay = value
	case TypeDayType:
		s.DayType = value
	case TypeRoadProblem:
		s.RoadProblem = value
	case TypePoliceActivity:
		s.PoliceActivity = value
	case TypeDrivingHistory:
		s.DrivingHistory = value
	}
	return s
}

// Unknown returns the types whose value is not in the enumeration.
func (s Set) Unknown() []Type {
	var out []Type
	for _, t := range Types() {
		if !IsKnown(t, s.Get(t)) {
			out = append(out, t)
		}
	}
	return out
}

// IsPeak reports whether the time of day is a peak window.
func (s Set) IsPeak() bool {
	return s.TimeOfDay == TimeMorningPeak || s.TimeOfDay == TimeEveningPeak
}

func fieldType(structField string) string {
	switch structField {
	case "Weather":
		return string(TypeWeather)
	case "TimeOfDay":
		return string(TypeTimeOfDay)
	case "DayType":
		return string(TypeDayType)
	case "RoadProblem":
		return string(TypeRoadProblem)
	case "PoliceActivity":
		return string(TypePoliceActivity)
	case "DrivingHistory":
		return string(TypeDrivingHistory)
	default:
		return structField
	}
}
