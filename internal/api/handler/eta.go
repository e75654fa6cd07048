// Package handler provides the HTTP handlers of the ETA API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/internal/api/models"
	"github.com/trafficeta/trafficeta/internal/api/response"
	"github.com/trafficeta/trafficeta/internal/baseline"
	"github.com/trafficeta/trafficeta/internal/conditions"
	"github.com/trafficeta/trafficeta/internal/eta"
	"github.com/trafficeta/trafficeta/internal/routing"
	"github.com/trafficeta/trafficeta/internal/telemetry"
	"github.com/trafficeta/trafficeta/internal/traffic"
	"github.com/trafficeta/trafficeta/pkg/polyline"
)

// DefaultMaxRouteCoordinates bounds the route handed to traffic providers.
const DefaultMaxRouteCoordinates = 500

// routeNamespace scopes route ids derived from geometry.
var routeNamespace = uuid.MustParse("6f1c7a52-3c1e-4b8e-9a55-2f4f0d7e8b11")

// TrafficSource is the live traffic surface used by the handlers.
type TrafficSource interface {
	TrafficData(ctx context.Context, coords []traffic.Coordinate, routeID string) *traffic.Data
	TrafficConditions(d *traffic.Data) traffic.Conditions
	ProviderStatus() traffic.Status
	ClearAllCaches()
}

// WeatherLookup resolves the weather condition at a point.
type WeatherLookup interface {
	Condition(ctx context.Context, lat, lon float64) (string, error)
}

// RouteLookup finds a driving route between two points.
type RouteLookup interface {
	Directions(ctx context.Context, origin, dest polyline.Point) (*routing.Route, error)
}

// ETAConfig holds the dependencies of ETAHandler. Traffic, Weather,
// Routing and Metrics are optional.
type ETAConfig struct {
	Model               *eta.Model
	Baseline            *baseline.Estimator
	Traffic             TrafficSource
	Weather             WeatherLookup
	Routing             RouteLookup
	Metrics             *telemetry.ETAMetrics
	MaxRouteCoordinates int
	Logger              zerolog.Logger
	Now                 func() time.Time
}

// ETAHandler serves ETA calculations.
type ETAHandler struct {
	model     *eta.Model
	baseline  *baseline.Estimator
	traffic   TrafficSource
	weather   WeatherLookup
	routing   RouteLookup
	metrics   *telemetry.ETAMetrics
	maxCoords int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewETAHandler creates an ETAHandler. A nil Baseline gets a default estimator.
func NewETAHandler(cfg ETAConfig) *ETAHandler {
	if cfg.Baseline == nil {
		cfg.Baseline = baseline.NewEstimator(baseline.Config{Logger: cfg.Logger})
	}
	if cfg.MaxRouteCoordinates <= 0 {
		cfg.MaxRouteCoordinates = DefaultMaxRouteCoordinates
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ETAHandler{
		model:     cfg.Model,
		baseline:  cfg.Baseline,
		traffic:   cfg.Traffic,
		weather:   cfg.Weather,
		routing:   cfg.Routing,
		metrics:   cfg.Metrics,
		maxCoords: cfg.MaxRouteCoordinates,
		logger:    cfg.Logger.With().Str("component", "eta_handler").Logger(),
		now:       cfg.Now,
	}
}

// ComputeETA handles POST /v1/eta:compute.
func (h *ETAHandler) ComputeETA(w http.ResponseWriter, r *http.Request) {
	var req models.ETARequest
	if detail, errs, ok := decodeBody(w, r, &req); !ok {
		response.BadRequest(w, r, detail, errs)
		return
	}

	route, err := h.resolveRoute(req.Route)
	if err != nil {
		response.BadRequest(w, r, "invalid route", []models.FieldError{
			{Field: "route.polyline", Message: err.Error(), Code: "polyline"},
		})
		return
	}

	origin, dest, haveEndpoints := endpoints(req, route)
	if req.BaseMinutes == nil && !haveEndpoints {
		response.BadRequest(w, r, "baseMinutes or trip endpoints are required", []models.FieldError{
			{Field: "baseMinutes", Message: "is required without origin and destination or a route", Code: "required_without"},
		})
		return
	}

	set := conditionSet(req.Conditions)
	weatherSource := models.WeatherSourceRequest
	if set.Weather == models.WeatherAuto {
		if !haveEndpoints {
			response.BadRequest(w, r, "weather lookup needs a location", []models.FieldError{
				{Field: "conditions.weather", Message: "auto requires origin or a route", Code: "required_with"},
			})
			return
		}
		set.Weather, weatherSource = h.lookupWeather(r.Context(), origin)
	}

	resp := models.ETAResponse{WeatherSource: weatherSource}

	base := 0.0
	if req.BaseMinutes != nil {
		base = *req.BaseMinutes
	} else {
		routed := req.RoutedMinutes
		var routedBy string
		if routed == nil && len(route) == 0 {
			if found := h.lookupRoute(r.Context(), origin, dest); found != nil {
				routed = &found.DurationMinutes
				routedBy = found.Provider
				route = h.thin(found.Geometry)
			}
		}

		times := h.baseline.Compute(origin, dest, routed)
		if routedBy != "" {
			h.baseline.Record(times)
		}
		base = times.Base()
		resp.Baseline = &models.Baseline{
			DistanceKm:          times.DistanceKm,
			RoutedMinutes:       times.RoutedMinutes,
			HaversineMinutes:    times.HaversineMinutes,
			NormalizedMinutes:   times.NormalizedMinutes,
			NormalizationFactor: times.NormalizationFactor,
			RoutingProvider:     routedBy,
		}
	}

	tc := traffic.DisabledConditions()
	if req.LiveTraffic && h.traffic != nil {
		coords := route
		if len(coords) == 0 && haveEndpoints {
			coords = []polyline.Point{origin, dest}
		}
		if len(coords) > 0 {
			resp.RouteID = routeID(req.Route, coords)
			data := h.traffic.TrafficData(r.Context(), toCoordinates(coords), resp.RouteID)
			tc = h.traffic.TrafficConditions(data)
		}
	}

	var live *traffic.Conditions
	if tc.LiveTrafficEnabled {
		live = &tc
	}

	result, err := h.model.Calculate(base, set, live)
	if err != nil {
		switch {
		case errors.Is(err, conditions.ErrMissingCondition), errors.Is(err, eta.ErrInvalidBaseMinutes):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			h.logger.Error().Err(err).Msg("eta calculation failed")
			response.InternalError(w, r, "internal server error")
		}
		return
	}

	if h.metrics != nil {
		h.metrics.Record(r.Context(), result.Multiplier, result.Breakdown.Cap.Band, result.TrafficIntegrated)
	}

	fillResponse(&resp, result, set, tc, h.now())
	response.JSON(w, r, http.StatusOK, resp)
}

// lookupWeather resolves the auto weather value. Lookup failures fall back
// to clear weather rather than failing the request.
func (h *ETAHandler) lookupWeather(ctx context.Context, at polyline.Point) (string, string) {
	if h.weather == nil {
		return conditions.WeatherClear, models.WeatherSourceDefault
	}
	value, err := h.weather.Condition(ctx, at.Lat, at.Lon)
	if err != nil || !conditions.IsKnown(conditions.TypeWeather, value) {
		h.logger.Warn().Err(err).Str("value", value).Msg("weather lookup failed, assuming clear")
		return conditions.WeatherClear, models.WeatherSourceDefault
	}
	return value, models.WeatherSourceLookup
}

// lookupRoute asks the routing engine for a driving route. Failures fall
// back to the straight-line estimate.
func (h *ETAHandler) lookupRoute(ctx context.Context, origin, dest polyline.Point) *routing.Route {
	if h.routing == nil {
		return nil
	}
	found, err := h.routing.Directions(ctx, origin, dest)
	if err != nil || found == nil || found.DurationMinutes <= 0 {
		h.logger.Warn().Err(err).Msg("route lookup failed, using straight-line estimate")
		return nil
	}
	return found
}

// resolveRoute returns the route geometry, thinned to the coordinate limit.
func (h *ETAHandler) resolveRoute(in *models.RouteInput) ([]polyline.Point, error) {
	if in == nil {
		return nil, nil
	}

	var points []polyline.Point
	switch {
	case len(in.Coordinates) > 0:
		points = make([]polyline.Point, 0, len(in.Coordinates))
		for _, c := range in.Coordinates {
			points = append(points, polyline.Point{Lat: c.Lat, Lon: c.Lon})
		}
	case in.Polyline != "":
		decoded, err := polyline.Decode(in.Polyline)
		if err != nil {
			return nil, err
		}
		points = decoded
	}

	return h.thin(points), nil
}

func (h *ETAHandler) thin(points []polyline.Point) []polyline.Point {
	if len(points) <= h.maxCoords {
		return points
	}
	h.logger.Debug().Int("points", len(points)).Int("limit", h.maxCoords).Msg("thinning route")
	return polyline.Thin(points, h.maxCoords)
}

// endpoints picks the trip endpoints: explicit origin and destination first,
// then the ends of the route.
func endpoints(req models.ETARequest, route []polyline.Point) (origin, dest polyline.Point, ok bool) {
	if req.Origin != nil && req.Destination != nil {
		return polyline.Point{Lat: req.Origin.Lat, Lon: req.Origin.Lon},
			polyline.Point{Lat: req.Destination.Lat, Lon: req.Destination.Lon}, true
	}
	if len(route) >= 2 {
		return route[0], route[len(route)-1], true
	}
	return polyline.Point{}, polyline.Point{}, false
}

// routeID returns the caller's id, or one derived from the geometry so
// repeated requests for the same route share cache entries.
func routeID(in *models.RouteInput, coords []polyline.Point) string {
	if in != nil && in.ID != "" {
		return in.ID
	}
	return "route_" + uuid.NewSHA1(routeNamespace, []byte(polyline.Encode(coords))).String()
}

func toCoordinates(points []polyline.Point) []traffic.Coordinate {
	out := make([]traffic.Coordinate, len(points))
	for i, p := range points {
		out[i] = traffic.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}
	return out
}

func conditionSet(in models.ConditionsInput) conditions.Set {
	return conditions.Set{
		Weather:        in.Weather,
		TimeOfDay:      in.TimeOfDay,
		DayType:        in.DayType,
		RoadProblem:    in.RoadProblem,
		PoliceActivity: in.PoliceActivity,
		DrivingHistory: in.DrivingHistory,
	}
}

func fillResponse(resp *models.ETAResponse, res *eta.Result, set conditions.Set, tc traffic.Conditions, now time.Time) {
	resp.BaseMinutes = res.BaseMinutes
	resp.AdjustedMinutes = res.AdjustedMinutes
	resp.Multiplier = res.Multiplier
	resp.TotalInflationPercent = res.TotalInflationPercent
	resp.AdditivePenaltyMinutes = res.AdditivePenaltyMinutes
	resp.TrafficIntegrated = res.TrafficIntegrated
	resp.ModelType = res.ModelType
	for _, t := range res.UnknownConditions {
		resp.UnknownConditions = append(resp.UnknownConditions, string(t))
	}

	resp.Conditions = models.ConditionsInput{
		Weather:        set.Weather,
		TimeOfDay:      set.TimeOfDay,
		DayType:        set.DayType,
		RoadProblem:    set.RoadProblem,
		PoliceActivity: set.PoliceActivity,
		DrivingHistory: set.DrivingHistory,
	}

	resp.Traffic = models.TrafficConditions{
		LiveTrafficEnabled: tc.LiveTrafficEnabled,
		JamFactor:          tc.JamFactor,
		IncidentCount:      tc.IncidentCount,
		AverageSpeedKmh:    tc.AverageSpeedKmh,
		Provider:           tc.Provider,
		LastUpdated:        models.TimestampPtr(tc.LastUpdated),
	}
	for _, inc := range tc.Incidents {
		resp.Traffic.Incidents = append(resp.Traffic.Incidents, models.IncidentSummary{
			Type:        string(inc.Type),
			Severity:    string(inc.Severity),
			Description: inc.Description,
		})
	}

	m := eta.MarginalsFor(res.Multiplier)
	resp.Marginals = models.Marginals{Traffic: m.Traffic, Conditions: m.Conditions, RouteBias: m.RouteBias}
	resp.Breakdown = breakdown(res.Breakdown)
	resp.ComputedAt = models.Timestamp(now)
}

func breakdown(b eta.Breakdown) models.Breakdown {
	out := models.Breakdown{
		Contributions: make([]models.Contribution, 0, len(b.Contributions)),
		Duration: models.DurationInfo{
			Category:         b.Duration.Category,
			ScalingFactor:    b.Duration.ScalingFactor,
			DampeningApplied: b.Duration.DampeningApplied,
		},
		Cap: models.CapInfo{
			Band:                      b.Cap.Band,
			Cap:                       b.Cap.Cap,
			CapApplied:                b.Cap.CapApplied,
			BoundsApplied:             b.Cap.BoundsApplied,
			InflationBeforeCapPercent: b.Cap.InflationBeforeCapPercent,
		},
		Additive: models.AdditiveInfo{
			TotalMinutes: b.Additive.TotalMinutes,
			PerHour:      b.Additive.PerHour,
		},
		Final: models.FinalInfo{
			ImpactMultiplier: b.Final.ImpactMultiplier,
			CombinedImpact:   b.Final.CombinedImpact,
			AdditiveFraction: b.Final.AdditiveFraction,
			ClampedInflation: b.Final.ClampedInflation,
			Multiplier:       b.Final.Multiplier,
		},
	}
	for _, c := range b.Contributions {
		out.Contributions = append(out.Contributions, models.Contribution{
			Factor:        string(c.Factor),
			Value:         c.Value,
			RawImpact:     c.RawImpact,
			ContextWeight: c.ContextWeight,
			Dampening:     c.Dampening,
			ScaledImpact:  c.ScaledImpact,
			Rank:          c.Rank,
			Weight:        c.Weight,
			Contribution:  c.Contribution,
			Percent:       c.Percent,
		})
	}
	for _, item := range b.Additive.Items {
		out.Additive.Items = append(out.Additive.Items, models.AdditiveItem{
			Factor:  string(item.Factor),
			Value:   item.Value,
			PerHour: item.PerHour,
			Minutes: item.Minutes,
		})
	}
	return out
}
