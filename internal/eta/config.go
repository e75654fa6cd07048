package eta

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid eta config")

// Config holds the model's tuning constants. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// Duration breakpoints in minutes.
	ShortTripMinutes  float64 `validate:"gt=0"`
	MediumTripMinutes float64 `validate:"gtfield=ShortTripMinutes"`
	LongTripMinutes   float64 `validate:"gtfield=MediumTripMinutes"`

	// Fraction of each impact retained at the medium and long breakpoints.
	ShortToMediumSlope float64 `validate:"gt=0,lte=1"`
	MediumToLongSlope  float64 `validate:"gt=0,ltefield=ShortToMediumSlope"`

	// Severity bands on |inflation| and the cap applied within each band.
	LightBandLimit    float64 `validate:"gt=0"`
	ModerateBandLimit float64 `validate:"gtfield=LightBandLimit"`
	LightCap          float64 `validate:"gt=0"`
	ModerateCap       float64 `validate:"gtefield=LightCap"`
	HeavyCap          float64 `validate:"gtefield=ModerateCap"`

	// Additive penalties in minutes per hour of baseline travel.
	WeatherAdditivePerHour float64 `validate:"gte=0"`
	PeakAdditivePerHour    float64 `validate:"gte=0"`
	RoadAdditivePerHour    float64 `validate:"gte=0"`

	// Absolute multiplier bounds.
	MinMultiplier float64 `validate:"gt=0,lte=1"`
	MaxMultiplier float64 `validate:"gte=1"`

	// Weight of the n-th largest impact is DiminishingFactor^n.
	DiminishingFactor float64 `validate:"gt=0,lte=1"`

	// Context weights.
	NightWeatherWeight float64 `validate:"gt=0"`
	UrbanRoadWeight    float64 `validate:"gt=0"`
	PeakTimeWeight     float64 `validate:"gt=0"`

	// Live traffic blending.
	ManualDampening     float64 `validate:"gte=0,lte=1"`
	TrafficJamWeight    float64 `validate:"gte=0"`
	TrafficIncidentStep float64 `validate:"gte=0"`
	TrafficIncidentCap  float64 `validate:"gte=0"`
	TrafficSpeedWeight  float64 `validate:"gte=0"`
	TrafficReferenceKmh float64 `validate:"gt=0"`
	TrafficMaxImpact    float64 `validate:"gt=0"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		ShortTripMinutes:  30,
		MediumTripMinutes: 120,
		LongTripMinutes:   300,

		ShortToMediumSlope: 0.8,
		MediumToLongSlope:  0.5,

		LightBandLimit:    0.20,
		ModerateBandLimit: 0.40,
		LightCap:          0.35,
		ModerateCap:       0.50,
		HeavyCap:          0.60,

		WeatherAdditivePerHour: 2.0,
		PeakAdditivePerHour:    3.0,
		RoadAdditivePerHour:    1.5,

		MinMultiplier: 0.8,
		MaxMultiplier: 1.4,

		DiminishingFactor: 0.7,

		NightWeatherWeight: 1.3,
		UrbanRoadWeight:    1.2,
		PeakTimeWeight:     1.15,

		ManualDampening:     0.3,
		TrafficJamWeight:    0.8,
		TrafficIncidentStep: 0.1,
		TrafficIncidentCap:  0.4,
		TrafficSpeedWeight:  0.6,
		TrafficReferenceKmh: 60,
		TrafficMaxImpact:    1.2,
	}
}

var validate = validator.New()

// Validate rejects inconsistent configurations such as non-increasing
// breakpoints or inverted bounds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, fe.StructField(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
