package openrouteservice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficeta/trafficeta/internal/routing"
	"github.com/trafficeta/trafficeta/internal/routing/openrouteservice"
	"github.com/trafficeta/trafficeta/pkg/polyline"
)

var (
	amsterdam = polyline.Point{Lat: 52.3676, Lon: 4.9041}
	utrecht   = polyline.Point{Lat: 52.0907, Lon: 5.1214}
)

func newClient(t *testing.T, h http.HandlerFunc) *openrouteservice.Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:     "ors-key",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) },
	})
}

func TestClient_Directions(t *testing.T) {
	geometry := polyline.Encode([]polyline.Point{amsterdam, {Lat: 52.2, Lon: 5.0}, utrecht})

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/directions/driving-car", r.URL.Path)
		assert.Equal(t, "ors-key", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.RawQuery, "the key never goes in the query string")

		var body struct {
			Coordinates [][]float64 `json:"coordinates"`
			Units       string      `json:"units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, [][]float64{{4.9041, 52.3676}, {5.1214, 52.0907}}, body.Coordinates)
		assert.Equal(t, "km", body.Units)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"routes":[{"summary":{"distance":45.2,"duration":2520},"geometry":` + quote(geometry) + `}]}`))
	})

	route, err := client.Directions(context.Background(), amsterdam, utrecht)
	require.NoError(t, err)

	assert.Equal(t, 45.2, route.DistanceKm)
	assert.Equal(t, 42.0, route.DurationMinutes)
	assert.Len(t, route.Geometry, 3)
	assert.Equal(t, openrouteservice.ProviderName, route.Provider)
	assert.Equal(t, openrouteservice.ProviderName, client.Name())
}

func TestClient_Directions_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"no route 404", http.StatusNotFound, `{"error":{"code":2009,"message":"Route could not be found"}}`, routing.ErrNoRouteFound},
		{"no route 400", http.StatusBadRequest, `{"error":{"code":2009,"message":"Route could not be found"}}`, routing.ErrNoRouteFound},
		{"bad request", http.StatusBadRequest, `{"error":{"code":2003,"message":"bad parameter"}}`, routing.ErrInvalidCoordinates},
		{"rate limited", http.StatusTooManyRequests, `{}`, routing.ErrRateLimitExceeded},
		{"server error", http.StatusServiceUnavailable, `not json`, routing.ErrProviderUnavailable},
		{"empty routes", http.StatusOK, `{"routes":[]}`, routing.ErrNoRouteFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Directions(context.Background(), amsterdam, utrecht)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Directions_InvalidCoordinates(t *testing.T) {
	client := newClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.Directions(context.Background(), polyline.Point{Lat: 91}, utrecht)
	assert.ErrorIs(t, err, routing.ErrInvalidCoordinates)
}

func TestError_IsRetryable(t *testing.T) {
	assert.True(t, (&routing.Error{Err: routing.ErrProviderUnavailable}).IsRetryable())
	assert.True(t, (&routing.Error{Err: routing.ErrRateLimitExceeded}).IsRetryable())
	assert.False(t, (&routing.Error{Err: routing.ErrNoRouteFound}).IsRetryable())
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
