package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficeta/trafficeta/internal/provider/resilience"
)

func TestRegistry_RegisterAndHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("tomtom")
	cfg.Registry = registry

	client := resilience.NewClient(cfg)

	assert.Equal(t, []string{"tomtom"}, registry.Names())

	health := registry.Health("tomtom")
	require.NotNil(t, health)
	assert.Equal(t, "tomtom", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	assert.Equal(t, "tomtom", client.Name())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("here")
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)

	registry.Unregister("here")

	assert.Empty(t, registry.Names())
	assert.Nil(t, registry.Health("here"))
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("here")
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)

	registry.RecordSuccess("here")
	registry.RecordFailure("here", errors.New("upstream timeout"))

	health := registry.Health("here")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, "upstream timeout", health.LastError)
}

func TestRegistry_RecordForUnknownProviderIsNoop(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.RecordSuccess("missing")
	registry.RecordFailure("missing", errors.New("x"))
	assert.Nil(t, registry.Health("missing"))
}

func TestRegistry_AllHealthSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"tomtom", "here", "open-meteo"} {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		_ = resilience.NewClient(cfg)
	}

	all := registry.AllHealth()
	require.Len(t, all, 3)
	assert.Equal(t, "here", all[0].Name)
	assert.Equal(t, "open-meteo", all[1].Name)
	assert.Equal(t, "tomtom", all[2].Name)
}

func TestRegistry_ClientRecordsOutcomes(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("tomtom")
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	health := registry.Health("tomtom")
	require.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	status.Store(http.StatusBadGateway)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	health = registry.Health("tomtom")
	require.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "Bad Gateway")
}
