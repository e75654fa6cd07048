// Package openrouteservice implements routing.Provider against the
// OpenRouteService driving directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/internal/provider/resilience"
	"github.com/trafficeta/trafficeta/internal/routing"
	"github.com/trafficeta/trafficeta/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	profile = "driving-car"
)

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is sent in the Authorization header.
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient resilience.Doer

	// Timeout bounds each call (default: 10s).
	Timeout time.Duration

	Registry *resilience.Registry
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient resilience.Doer
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		clientCfg.CircuitBreaker.Logger = cfg.Logger
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Directions returns the fastest driving route from origin to dest.
func (c *Client) Directions(ctx context.Context, origin, dest polyline.Point) (*routing.Route, error) {
	if routing.ValidatePoint(origin) != nil || routing.ValidatePoint(dest) != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_COORDINATES",
			Message:  "invalid origin or destination",
			Err:      routing.ErrInvalidCoordinates,
		}
	}

	// GeoJSON order: lon, lat.
	body, err := json.Marshal(orsRequest{
		Coordinates: [][]float64{{origin.Lon, origin.Lat}, {dest.Lon, dest.Lat}},
		Geometry:    true,
		Units:       "km",
		Preference:  "fastest",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/directions/"+profile, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("directions request failed")
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp.StatusCode, respBody)
	}

	var parsed orsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Routes) == 0 {
		return nil, &routing.Error{Provider: ProviderName, Code: "NO_ROUTE", Message: "empty route list", Err: routing.ErrNoRouteFound}
	}

	first := parsed.Routes[0]
	geometry, err := polyline.Decode(first.Geometry)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}

	c.logger.Debug().
		Float64("distance_km", first.Summary.Distance).
		Float64("duration_s", first.Summary.Duration).
		Int("points", len(geometry)).
		Msg("received directions")

	return &routing.Route{
		Geometry:        geometry,
		DistanceKm:      first.Summary.Distance,
		DurationMinutes: first.Summary.Duration / 60,
		Provider:        ProviderName,
		FetchedAt:       c.now(),
	}, nil
}

// errorFromResponse maps ORS error responses to routing errors.
func errorFromResponse(status int, body []byte) error {
	var orsErr orsErrorResponse
	_ = json.Unmarshal(body, &orsErr) //nolint:errcheck // message is best effort

	e := &routing.Error{Provider: ProviderName, Message: orsErr.Error.Message}
	switch {
	case status == http.StatusTooManyRequests:
		e.Code, e.Err = "RATE_LIMIT", routing.ErrRateLimitExceeded
	case status == http.StatusNotFound || orsErr.Error.Code == orsErrorCodeRouteNotFound:
		e.Code, e.Err = "NO_ROUTE", routing.ErrNoRouteFound
	case status == http.StatusBadRequest:
		e.Code, e.Err = "BAD_REQUEST", routing.ErrInvalidCoordinates
	case status >= http.StatusInternalServerError:
		e.Code, e.Err = fmt.Sprintf("SERVER_%d", status), routing.ErrProviderUnavailable
	default:
		e.Code, e.Err = fmt.Sprintf("HTTP_%d", status), routing.ErrProviderUnavailable
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("routing provider returned status %d", status)
	}
	return e
}
