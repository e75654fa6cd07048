package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficeta/trafficeta/internal/conditions"
	"github.com/trafficeta/trafficeta/internal/provider/resilience"
	"github.com/trafficeta/trafficeta/internal/weather/openmeteo"
)

func TestClient_CurrentWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		assert.Equal(t, "52.5200", r.URL.Query().Get("latitude"))
		assert.Equal(t, "13.4050", r.URL.Query().Get("longitude"))
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"latitude": 52.52, "longitude": 13.41,
			"current_weather": {"temperature": 3.4, "windspeed": 12.1, "weathercode": 63, "time": "2024-02-10T07:00"}
		}`))
	}))
	defer server.Close()

	now := time.Date(2024, 2, 10, 7, 5, 0, 0, time.UTC)
	client := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return now },
	})

	obs, err := client.CurrentWeather(context.Background(), 52.52, 13.405)
	require.NoError(t, err)
	assert.Equal(t, conditions.WeatherRain, obs.Condition)
	assert.Equal(t, 63, obs.Code)
	assert.Equal(t, 3.4, obs.Temperature)
	assert.Equal(t, 12.1, obs.WindSpeed)
	assert.Equal(t, time.Date(2024, 2, 10, 7, 0, 0, 0, time.UTC), obs.ObservedAt)
	assert.Equal(t, now, obs.FetchedAt)
	assert.Equal(t, "openmeteo", client.Name())
}

func TestClient_MissingCurrentWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"latitude": 1, "longitude": 2}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL, HTTPClient: server.Client()})
	_, err := client.CurrentWeather(context.Background(), 1, 2)
	assert.Error(t, err)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"current_weather": {"weathercode": 0, "time": "2024-02-10T07:00"}}`))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:  server.URL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	obs, err := client.CurrentWeather(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, conditions.WeatherClear, obs.Condition)
	assert.Equal(t, int32(3), calls.Load())

	health := registry.Health(openmeteo.ProviderName)
	require.NotNil(t, health)
	assert.True(t, health.IsHealthy())
	assert.NotNil(t, health.LastSuccessAt)
}

func TestConditionForCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, conditions.WeatherClear},
		{1, conditions.WeatherCloudy},
		{3, conditions.WeatherCloudy},
		{45, conditions.WeatherCloudy},
		{48, conditions.WeatherCloudy},
		{51, conditions.WeatherRain},
		{65, conditions.WeatherRain},
		{81, conditions.WeatherRain},
		{71, conditions.WeatherSnow},
		{77, conditions.WeatherSnow},
		{86, conditions.WeatherSnow},
		{95, conditions.WeatherStorm},
		{99, conditions.WeatherStorm},
		{42, conditions.WeatherCloudy},
		{-1, conditions.WeatherCloudy},
	}
	for _, tt := range tests {
		got, _ := openmeteo.ConditionForCode(tt.code)
		assert.Equal(t, tt.want, got, "code %d", tt.code)
	}
}
