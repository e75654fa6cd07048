// Package config loads process configuration from the environment, with an
// optional .env file for local development. Configuration is read once at
// startup and treated as immutable afterwards.
package config

import "time"

// Secret is a string that never prints its value.
type Secret string

// String implements fmt.Stringer.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string {
	return s.String()
}

// Value returns the underlying secret.
func (s Secret) Value() string {
	return string(s)
}

// Config is the top-level configuration.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"oneof=development test staging production"`
	Port        string `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	Traffic   TrafficConfig
	Weather   WeatherConfig
	Routing   RoutingConfig
	API       APIConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
}

// TrafficConfig configures the traffic manager and its providers.
type TrafficConfig struct {
	Enabled             bool          `envconfig:"TRAFFIC_ENABLED" default:"true"`
	ProviderPriority    []string      `envconfig:"TRAFFIC_PROVIDER_PRIORITY" default:"tomtom,here,synthetic" validate:"min=1,dive,oneof=tomtom here synthetic"`
	FallbackToSynthetic bool          `envconfig:"TRAFFIC_FALLBACK_TO_SYNTHETIC" default:"true"`
	CacheTTL            time.Duration `envconfig:"TRAFFIC_CACHE_TTL" default:"5m" validate:"gt=0"`
	AutoRefreshInterval time.Duration `envconfig:"TRAFFIC_AUTO_REFRESH_INTERVAL" default:"60s" validate:"gte=0"`
	RequestTimeout      time.Duration `envconfig:"TRAFFIC_REQUEST_TIMEOUT" default:"10s" validate:"gt=0"`
	TomTomAPIKey        Secret        `envconfig:"TOMTOM_API_KEY"`
	HEREAPIKey          Secret        `envconfig:"HERE_API_KEY"`
}

// WeatherConfig configures the automated weather lookup.
type WeatherConfig struct {
	LookupEnabled bool          `envconfig:"WEATHER_LOOKUP_ENABLED" default:"true"`
	OpenMeteoURL  string        `envconfig:"OPEN_METEO_URL" default:"https://api.open-meteo.com/v1" validate:"required,url"`
	CacheTTL      time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m" validate:"gt=0"`

	// WarmPoints are "lat:lon" pairs refreshed in the background.
	WarmPoints []string `envconfig:"WEATHER_WARM_POINTS"`
}

// RoutingConfig configures the driving-route lookup used when a request
// gives only endpoints. It is off without an API key.
type RoutingConfig struct {
	OpenRouteServiceKey Secret        `envconfig:"ORS_API_KEY"`
	OpenRouteServiceURL string        `envconfig:"ORS_BASE_URL" default:"https://api.openrouteservice.org" validate:"required,url"`
	CacheTTL            time.Duration `envconfig:"ROUTING_CACHE_TTL" default:"5m" validate:"gt=0"`
}

// Enabled reports whether a routing key is configured.
func (c RoutingConfig) Enabled() bool {
	return c.OpenRouteServiceKey != ""
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	RateLimitPerMinute  int  `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120" validate:"gt=0"`
	MaxRouteCoordinates int  `envconfig:"MAX_ROUTE_COORDINATES" default:"500" validate:"gte=2"`
	RequireTLS          bool `envconfig:"REQUIRE_TLS" default:"false"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRatio  float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1" validate:"gt=0,lte=1"`
}

// ProfilingConfig configures continuous profiling.
type ProfilingConfig struct {
	Enabled       bool   `envconfig:"PYROSCOPE_ENABLED" default:"false"`
	ServerAddress string `envconfig:"PYROSCOPE_SERVER_ADDRESS" default:"http://localhost:4040" validate:"omitempty,url"`
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
