package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProviderMetrics records upstream fetches and route cache outcomes. It
// satisfies traffic.Recorder.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates the instruments on meter. A nil meter uses the
// global meter provider.
func NewProviderMetrics(meter metric.Meter) (*ProviderMetrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of upstream provider fetches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Upstream provider fetches"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Route cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Route cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

func providerAttrs(provider, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}

// RecordRequest records one fetch. err marks the fetch as failed.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := providerAttrs(provider, operation)
	attrs = append(attrs, attribute.Bool("error", err != nil))

	// Recording outlives the request context.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.cacheHits.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

// RecordCacheMiss records a cache miss.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.cacheMisses.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

// ETAMetrics records computed multipliers.
type ETAMetrics struct {
	multiplier metric.Float64Histogram
	total      metric.Int64Counter
}

// NewETAMetrics creates the ETA instruments. A nil meter uses the global
// meter provider.
func NewETAMetrics(meter metric.Meter) (*ETAMetrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	multiplier, err := meter.Float64Histogram(
		"eta.multiplier",
		metric.WithDescription("Final ETA multiplier"),
		metric.WithExplicitBucketBoundaries(0.8, 0.9, 1.0, 1.1, 1.2, 1.3, 1.4),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"eta.calculations",
		metric.WithDescription("ETA calculations"),
		metric.WithUnit("{calculation}"),
	)
	if err != nil {
		return nil, err
	}

	return &ETAMetrics{multiplier: multiplier, total: total}, nil
}

// Record records one calculation.
func (m *ETAMetrics) Record(ctx context.Context, multiplier float64, band string, trafficIntegrated bool) {
	attrs := metric.WithAttributes(
		attribute.String("eta.band", band),
		attribute.Bool("eta.traffic", trafficIntegrated),
	)
	m.multiplier.Record(ctx, multiplier, attrs)
	m.total.Add(ctx, 1, attrs)
}
