package config_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficeta/trafficeta/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeEnvFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.IsProduction())

	tr := cfg.Traffic
	assert.True(t, tr.Enabled)
	assert.Equal(t, []string{"tomtom", "here", "synthetic"}, tr.ProviderPriority)
	assert.True(t, tr.FallbackToSynthetic)
	assert.Equal(t, 5*time.Minute, tr.CacheTTL)
	assert.Equal(t, time.Minute, tr.AutoRefreshInterval)
	assert.Equal(t, 10*time.Second, tr.RequestTimeout)

	assert.True(t, cfg.Weather.LookupEnabled)
	assert.Equal(t, "https://api.open-meteo.com/v1", cfg.Weather.OpenMeteoURL)
	assert.Equal(t, 120, cfg.API.RateLimitPerMinute)
	assert.False(t, cfg.API.RequireTLS)
	assert.False(t, cfg.Routing.Enabled())
	assert.Equal(t, 5*time.Minute, cfg.Routing.CacheTTL)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Profiling.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("TRAFFIC_PROVIDER_PRIORITY", " HERE , synthetic")
	t.Setenv("TRAFFIC_FALLBACK_TO_SYNTHETIC", "false")
	t.Setenv("TRAFFIC_REQUEST_TIMEOUT", "3s")
	t.Setenv("TOMTOM_API_KEY", "tt-secret")
	t.Setenv("REQUIRE_TLS", "true")
	t.Setenv("ORS_API_KEY", "ors-secret")
	t.Setenv("WEATHER_WARM_POINTS", "52.37:4.90,51.92:4.48")

	cfg, err := config.Load(writeEnvFile(t, ""))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"here", "synthetic"}, cfg.Traffic.ProviderPriority)
	assert.False(t, cfg.Traffic.FallbackToSynthetic)
	assert.Equal(t, 3*time.Second, cfg.Traffic.RequestTimeout)
	assert.Equal(t, "tt-secret", cfg.Traffic.TomTomAPIKey.Value())
	assert.True(t, cfg.API.RequireTLS)
	assert.True(t, cfg.Routing.Enabled())
	assert.Equal(t, "[REDACTED]", cfg.Routing.OpenRouteServiceKey.String())
	assert.Equal(t, []string{"52.37:4.90", "51.92:4.48"}, cfg.Weather.WarmPoints)
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	t.Setenv("APP_PORT", "7000")
	t.Cleanup(func() { _ = os.Unsetenv("HERE_API_KEY") })
	require.Empty(t, os.Getenv("HERE_API_KEY"))

	cfg, err := config.Load(writeEnvFile(t, "APP_PORT=1234\nHERE_API_KEY=from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "from-file", cfg.Traffic.HEREAPIKey.Value())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		typ  config.ErrorType
	}{
		{"unknown provider", map[string]string{"TRAFFIC_PROVIDER_PRIORITY": "tomtom,waze"}, config.ErrValidation},
		{"bad environment", map[string]string{"APP_ENV": "qa"}, config.ErrValidation},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, config.ErrValidation},
		{"zero timeout", map[string]string{"TRAFFIC_REQUEST_TIMEOUT": "0s"}, config.ErrValidation},
		{"bad url", map[string]string{"OPEN_METEO_URL": "not a url"}, config.ErrValidation},
		{"unparseable duration", map[string]string{"TRAFFIC_CACHE_TTL": "soon"}, config.ErrParsing},
		{"unparseable bool", map[string]string{"TRAFFIC_ENABLED": "maybe"}, config.ErrParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(writeEnvFile(t, ""))
			require.Error(t, err)

			var cfgErr *config.Error
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.typ, cfgErr.Type)
		})
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))

	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, config.ErrDotenv, cfgErr.Type)
}

func TestSecret_Redacted(t *testing.T) {
	s := config.Secret("abc")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
	assert.Equal(t, "abc", s.Value())
	assert.Empty(t, config.Secret("").String())
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
