package synthetic_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficeta/trafficeta/internal/traffic"
	"github.com/trafficeta/trafficeta/internal/traffic/synthetic"
)

func coords(n int) []traffic.Coordinate {
	out := make([]traffic.Coordinate, n)
	for i := range out {
		out[i] = traffic.Coordinate{Lat: 52 + float64(i)*0.001, Lon: 4 + float64(i)*0.001}
	}
	return out
}

func newProvider(seed int64, at time.Time) *synthetic.Provider {
	return synthetic.New(synthetic.Config{
		Source: rand.NewSource(seed),
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return at },
	})
}

func TestProvider_Identity(t *testing.T) {
	p := newProvider(1, time.Now())
	assert.Equal(t, "synthetic", p.Name())
	assert.True(t, p.IsAvailable())
}

func TestProvider_SegmentCount(t *testing.T) {
	p := newProvider(1, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		points int
		want   int
	}{
		{1, 1},
		{4, 1},
		{25, 5},
		{50, 10},
		{400, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d points", tt.points), func(t *testing.T) {
			data, err := p.FetchTrafficData(context.Background(), coords(tt.points), fmt.Sprintf("route-%d", tt.points))
			require.NoError(t, err)
			assert.Len(t, data.Flows, tt.want)
		})
	}
}

func TestProvider_FlowRanges(t *testing.T) {
	for _, hour := range []int{2, 8, 12, 17, 23} {
		p := newProvider(int64(hour), time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC))
		data, err := p.FetchTrafficData(context.Background(), coords(50), "r")
		require.NoError(t, err)

		assert.Equal(t, "Synthetic", data.Provider)
		assert.GreaterOrEqual(t, data.OverallJamFactor, 0.0)
		assert.LessOrEqual(t, data.OverallJamFactor, 1.0)
		assert.Greater(t, data.AverageSpeedKmh, 0.0)

		for _, f := range data.Flows {
			assert.GreaterOrEqual(t, f.FreeFlowSpeedKmh, 80.0)
			assert.LessOrEqual(t, f.FreeFlowSpeedKmh, 120.0)
			assert.GreaterOrEqual(t, f.SpeedKmh, 10.0)
			assert.GreaterOrEqual(t, f.Confidence, 0.7)
			assert.LessOrEqual(t, f.Confidence, 0.95)
			assert.GreaterOrEqual(t, f.JamFactor, 0.0)
			assert.LessOrEqual(t, f.JamFactor, 1.0)
		}
	}
}

func TestProvider_HourBias(t *testing.T) {
	night := newProvider(7, time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC))
	rush := newProvider(7, time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC))

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("r%d", i)
		n, _ := night.FetchTrafficData(context.Background(), coords(50), id)
		r, _ := rush.FetchTrafficData(context.Background(), coords(50), id)

		// night base jam <= 0.2, rush base jam >= 0.5
		for _, f := range n.Flows {
			assert.LessOrEqual(t, f.JamFactor, 0.3+1e-9)
		}
		for _, f := range r.Flows {
			assert.GreaterOrEqual(t, f.JamFactor, 0.25-1e-9)
		}
	}
}

func TestProvider_Incidents(t *testing.T) {
	p := newProvider(42, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	route := coords(200)

	total := 0
	for i := 0; i < 200; i++ {
		data, err := p.FetchTrafficData(context.Background(), route, fmt.Sprintf("long-%d", i))
		require.NoError(t, err)
		assert.LessOrEqual(t, data.IncidentCount, 3)
		assert.Equal(t, len(data.Incidents), data.IncidentCount)
		for _, inc := range data.Incidents {
			assert.Contains(t, []traffic.IncidentType{
				traffic.IncidentAccident,
				traffic.IncidentConstruction,
				traffic.IncidentCongestion,
				traffic.IncidentWeather,
			}, inc.Type)
			assert.Contains(t, route, inc.Location)
			assert.GreaterOrEqual(t, inc.Confidence, 0.8)
		}
		total += data.IncidentCount
	}
	assert.Positive(t, total)
}

func TestProvider_ShortRouteNeverFails(t *testing.T) {
	p := newProvider(3, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	for i := 0; i < 500; i++ {
		data, err := p.FetchTrafficData(context.Background(), coords(15), fmt.Sprintf("short-%d", i))
		require.NoError(t, err)
		require.False(t, data.IsFallback())
		assert.LessOrEqual(t, data.IncidentCount, 1)
	}
}

func TestProvider_Deterministic(t *testing.T) {
	at := time.Date(2024, 1, 1, 8, 15, 0, 0, time.UTC)
	a, _ := newProvider(99, at).FetchTrafficData(context.Background(), coords(30), "r")
	b, _ := newProvider(99, at).FetchTrafficData(context.Background(), coords(30), "r")

	assert.Equal(t, a.Flows, b.Flows)
	assert.Equal(t, a.Incidents, b.Incidents)
	assert.Equal(t, a.OverallJamFactor, b.OverallJamFactor)
}

func TestProvider_CacheRespectsTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := synthetic.New(synthetic.Config{
		CacheTTL: time.Minute,
		Source:   rand.NewSource(5),
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return now },
	})

	first, _ := p.FetchTrafficData(context.Background(), coords(10), "r")
	second, _ := p.FetchTrafficData(context.Background(), coords(10), "r")
	assert.Same(t, first, second)

	now = now.Add(2 * time.Minute)
	third, _ := p.FetchTrafficData(context.Background(), coords(10), "r")
	assert.NotSame(t, first, third)
	assert.True(t, third.LastUpdated.After(first.LastUpdated))
}
