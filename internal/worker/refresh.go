package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TrafficRefresher is the part of the traffic manager the job drives.
type TrafficRefresher interface {
	SelectionDue() bool
	SelectActiveProvider() string
}

// WeatherWarmer fills the weather cache for a point.
type WeatherWarmer interface {
	Condition(ctx context.Context, lat, lon float64) (string, error)
}

// RefreshJobConfig holds configuration for creating a RefreshJob. Traffic
// and Weather are optional.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Traffic TrafficRefresher
	Weather WeatherWarmer
	Logger  zerolog.Logger
	Now     func() time.Time
}

// RefreshJob re-selects the traffic provider and warms weather lookups.
type RefreshJob struct {
	config  RefreshConfig
	traffic TrafficRefresher
	weather WeatherWarmer
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	metrics RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	Runs               int64
	ProviderSelections int64
	WeatherWarmed      int64
	WeatherFailed      int64
	LastRunAt          time.Time
	LastRunDuration    time.Duration
	LastActiveProvider string
}

// RefreshResult is the outcome of one Run.
type RefreshResult struct {
	StartTime        time.Time
	Duration         time.Duration
	ProviderSelected bool
	ActiveProvider   string
	WeatherWarmed    int
	WeatherFailed    int
	Errors           []RefreshError
}

// RefreshError is a failed weather lookup.
type RefreshError struct {
	Point Point
	Error string
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		traffic: cfg.Traffic,
		weather: cfg.Weather,
		logger:  cfg.Logger.With().Str("component", "refresh").Logger(),
		now:     now,
	}
}

// Start runs the job every Interval until ctx is done.
func (j *RefreshJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.config.Interval).Int("warm_points", len(j.config.WarmPoints)).Msg("refresh loop started")
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("refresh loop stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

// Run executes one refresh pass.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	result := &RefreshResult{StartTime: j.now()}

	if j.traffic != nil && j.traffic.SelectionDue() {
		result.ProviderSelected = true
		result.ActiveProvider = j.traffic.SelectActiveProvider()
	}

	if j.weather != nil && len(j.config.WarmPoints) > 0 {
		j.warmWeather(ctx, result)
	}

	result.Duration = j.now().Sub(result.StartTime)
	j.updateMetrics(result)

	ev := j.logger.Debug()
	if result.WeatherFailed > 0 {
		ev = j.logger.Warn()
	}
	ev.Dur("duration", result.Duration).
		Bool("provider_selected", result.ProviderSelected).
		Str("active_provider", result.ActiveProvider).
		Int("weather_warmed", result.WeatherWarmed).
		Int("weather_failed", result.WeatherFailed).
		Msg("refresh completed")

	return result
}

func (j *RefreshJob) warmWeather(ctx context.Context, result *RefreshResult) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, p := range j.config.WarmPoints {
		p := p
		g.Go(func() error {
			pointCtx, cancel := context.WithTimeout(gctx, j.config.Timeout)
			defer cancel()

			_, err := j.weather.Condition(pointCtx, p.Lat, p.Lon)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.WeatherFailed++
				result.Errors = append(result.Errors, RefreshError{Point: p, Error: err.Error()})
				return nil
			}
			result.WeatherWarmed++
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // lookups never return errors to the group
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.Runs++
	if result.ProviderSelected {
		j.metrics.ProviderSelections++
		j.metrics.LastActiveProvider = result.ActiveProvider
	}
	j.metrics.WeatherWarmed += int64(result.WeatherWarmed)
	j.metrics.WeatherFailed += int64(result.WeatherFailed)
	j.metrics.LastRunAt = result.StartTime
	j.metrics.LastRunDuration = result.Duration
}

// Metrics returns a copy of the current metrics.
func (j *RefreshJob) Metrics() RefreshMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}
