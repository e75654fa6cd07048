// Package openmeteo implements weather.Provider against the Open-Meteo
// forecast API, which needs no API key.
package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/internal/conditions"
	"github.com/trafficeta/trafficeta/internal/provider/resilience"
	"github.com/trafficeta/trafficeta/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openmeteo"

	// DefaultBaseURL is the Open-Meteo API base URL.
	DefaultBaseURL = "https://api.open-meteo.com/v1"

	timeLayout = "2006-01-02T15:04"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client with two
	// retries is created.
	HTTPClient resilience.Doer

	// Registry receives the default client's health.
	Registry *resilience.Registry

	Logger zerolog.Logger
	Now    func() time.Time
}

// Client is an Open-Meteo API client.
type Client struct {
	baseURL    string
	httpClient resilience.Doer
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.MaxRetries = 2
		clientCfg.CircuitBreaker.Logger = cfg.Logger
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type forecastResponse struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
		Time        string  `json:"time"`
	} `json:"current_weather"`
}

// CurrentWeather fetches current conditions for a location.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error) {
	query := url.Values{
		"latitude":        {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude":       {strconv.FormatFloat(lon, 'f', 4, 64)},
		"current_weather": {"true"},
		"timezone":        {"UTC"},
	}

	var resp forecastResponse
	if err := resilience.GetJSON(ctx, c.httpClient, c.baseURL+"/forecast", query, &resp); err != nil {
		return nil, fmt.Errorf("fetching current weather: %w", err)
	}
	if resp.CurrentWeather == nil {
		return nil, fmt.Errorf("fetching current weather: %w", weather.ErrProviderUnavailable)
	}

	cw := resp.CurrentWeather
	now := c.now()
	observed, err := time.Parse(timeLayout, cw.Time)
	if err != nil {
		c.logger.Debug().Str("time", cw.Time).Msg("unparseable observation time")
		observed = now
	}

	condition, description := ConditionForCode(cw.WeatherCode)
	return &weather.Observation{
		Lat:         lat,
		Lon:         lon,
		Temperature: cw.Temperature,
		WindSpeed:   cw.WindSpeed,
		Code:        cw.WeatherCode,
		Condition:   condition,
		Description: description,
		ObservedAt:  observed,
		FetchedAt:   now,
	}, nil
}

// ConditionForCode maps a WMO weather interpretation code to a weather
// condition value and a short description. Unknown codes map to cloudy.
func ConditionForCode(code int) (string, string) {
	switch {
	case code == 0:
		return conditions.WeatherClear, "clear sky"
	case code >= 1 && code <= 3:
		return conditions.WeatherCloudy, "partly cloudy"
	case code == 45 || code == 48:
		return conditions.WeatherCloudy, "fog"
	case code >= 51 && code <= 57:
		return conditions.WeatherRain, "drizzle"
	case code >= 61 && code <= 67:
		return conditions.WeatherRain, "rain"
	case code >= 80 && code <= 82:
		return conditions.WeatherRain, "rain showers"
	case code >= 71 && code <= 77:
		return conditions.WeatherSnow, "snow"
	case code == 85 || code == 86:
		return conditions.WeatherSnow, "snow showers"
	case code >= 95 && code <= 99:
		return conditions.WeatherStorm, "thunderstorm"
	default:
		return conditions.WeatherCloudy, "unknown"
	}
}
