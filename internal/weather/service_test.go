package weather_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficeta/trafficeta/internal/conditions"
	"github.com/trafficeta/trafficeta/internal/weather"
)

type mockProvider struct {
	calls     atomic.Int32
	condition string
	err       error
	delay     time.Duration
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) CurrentWeather(_ context.Context, lat, lon float64) (*weather.Observation, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &weather.Observation{Lat: lat, Lon: lon, Condition: m.condition}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(p weather.Provider, c *clock) *weather.Service {
	return weather.NewService(weather.ServiceConfig{
		Provider: p,
		Logger:   zerolog.Nop(),
		Now:      c.Now,
	})
}

func TestService_CachesWithinGridCell(t *testing.T) {
	p := &mockProvider{condition: conditions.WeatherRain}
	svc := newService(p, &clock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)})

	first, err := svc.CurrentWeather(context.Background(), 51.51, -0.12)
	require.NoError(t, err)
	second, err := svc.CurrentWeather(context.Background(), 51.55, -0.15)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), p.calls.Load())

	_, err = svc.CurrentWeather(context.Background(), 48.85, 2.35)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())

	stats := svc.CacheStats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 2, stats.FreshEntries)
	assert.Equal(t, "mock", stats.Provider)
}

func TestService_RefetchesAfterTTL(t *testing.T) {
	p := &mockProvider{condition: conditions.WeatherClear}
	c := &clock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc := newService(p, c)

	_, err := svc.CurrentWeather(context.Background(), 10, 10)
	require.NoError(t, err)

	c.Advance(11 * time.Minute)
	_, err = svc.CurrentWeather(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestService_ServesStaleOnError(t *testing.T) {
	p := &mockProvider{condition: conditions.WeatherSnow}
	c := &clock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc := newService(p, c)

	_, err := svc.CurrentWeather(context.Background(), 10, 10)
	require.NoError(t, err)

	p.err = errors.New("boom")
	c.Advance(30 * time.Minute)

	obs, err := svc.CurrentWeather(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.True(t, obs.Stale)
	assert.Equal(t, conditions.WeatherSnow, obs.Condition)

	c.Advance(31 * time.Minute)
	_, err = svc.CurrentWeather(context.Background(), 10, 10)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestService_ErrorWithoutCache(t *testing.T) {
	p := &mockProvider{err: errors.New("down")}
	svc := newService(p, &clock{now: time.Now()})

	_, err := svc.Condition(context.Background(), 10, 10)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestService_InvalidCoordinates(t *testing.T) {
	svc := newService(&mockProvider{}, &clock{now: time.Now()})

	for _, pt := range [][2]float64{{91, 0}, {-91, 0}, {0, 181}, {0, -181}} {
		_, err := svc.CurrentWeather(context.Background(), pt[0], pt[1])
		assert.ErrorIs(t, err, weather.ErrInvalidCoordinates)
	}
}

func TestService_Condition(t *testing.T) {
	svc := newService(&mockProvider{condition: conditions.WeatherStorm}, &clock{now: time.Now()})

	got, err := svc.Condition(context.Background(), 40.7, -74)
	require.NoError(t, err)
	assert.Equal(t, conditions.WeatherStorm, got)
}

func TestService_ConcurrentMissesShareOneFetch(t *testing.T) {
	p := &mockProvider{condition: conditions.WeatherCloudy, delay: 50 * time.Millisecond}
	svc := newService(p, &clock{now: time.Now()})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CurrentWeather(context.Background(), 1, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
}

func TestService_InvalidateCache(t *testing.T) {
	p := &mockProvider{condition: conditions.WeatherClear}
	svc := newService(p, &clock{now: time.Now()})

	_, _ = svc.CurrentWeather(context.Background(), 1, 1)
	svc.InvalidateCache()
	assert.Zero(t, svc.CacheStats().Entries)

	_, _ = svc.CurrentWeather(context.Background(), 1, 1)
	assert.Equal(t, int32(2), p.calls.Load())
}
