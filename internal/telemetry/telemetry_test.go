package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/trafficeta/trafficeta/internal/telemetry"
	"github.com/trafficeta/trafficeta/internal/traffic"
)

var _ traffic.Recorder = (*telemetry.ProviderMetrics)(nil)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "trafficeta-test",
		Enabled:     false,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProvider_ShutdownNil(t *testing.T) {
	assert.NoError(t, (&telemetry.Provider{}).Shutdown(context.Background()))
}

func TestProviderMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := telemetry.NewProviderMetrics(mp.Meter("test"))
	require.NoError(t, err)

	m.RecordCacheMiss("tomtom", "traffic")
	m.RecordRequest("tomtom", "traffic", 120*time.Millisecond, nil)
	m.RecordRequest("tomtom", "traffic", 80*time.Millisecond, errors.New("x"))
	m.RecordCacheHit("tomtom", "traffic")
	m.RecordCacheHit("tomtom", "traffic")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	got := sums(rm)
	assert.Equal(t, int64(2), got["provider.cache.hit"])
	assert.Equal(t, int64(1), got["provider.cache.miss"])
	assert.Equal(t, int64(2), got["provider.request.total"])
}

func TestETAMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := telemetry.NewETAMetrics(mp.Meter("test"))
	require.NoError(t, err)
	m.Record(context.Background(), 1.1, "light", false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(1), sums(rm)["eta.calculations"])
}

func TestStartProfiling_Disabled(t *testing.T) {
	stop := telemetry.StartProfiling(telemetry.ProfilingConfig{Logger: zerolog.Nop()})
	require.NotNil(t, stop)
	stop()
}

// sums adds up every int64 sum data point per instrument name.
func sums(rm metricdata.ResourceMetrics) map[string]int64 {
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}
