package telemetry

import (
	"github.com/grafana/pyroscope-go"
	"github.com/rs/zerolog"
)

// ProfilingConfig configures continuous profiling.
type ProfilingConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string
	Tags            map[string]string
	Logger          zerolog.Logger
}

// StartProfiling starts a Pyroscope profiler and returns its stop function.
// When profiling is disabled or the profiler cannot start, the returned
// function is a no-op; a failure to start is logged, not returned.
func StartProfiling(cfg ProfilingConfig) func() {
	if !cfg.Enabled {
		return func() {}
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          pyroscopeLogger{cfg.Logger},
		Tags:            cfg.Tags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to start profiler")
		return func() {}
	}

	cfg.Logger.Info().
		Str("server", cfg.ServerAddress).
		Str("application", cfg.ApplicationName).
		Msg("profiling started")

	return func() {
		if err := profiler.Stop(); err != nil {
			cfg.Logger.Error().Err(err).Msg("failed to stop profiler")
		}
	}
}

// pyroscopeLogger adapts zerolog to pyroscope.Logger.
type pyroscopeLogger struct {
	log zerolog.Logger
}

func (l pyroscopeLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l pyroscopeLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}

func (l pyroscopeLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}
