package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records content-fetch metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one fetch with duration and error status.
	RecordFetch(ctx context.Context, meta FetchMeta, duration time.Duration, err error)

	// RecordFallback records that label was served by the secondary source
	// after the primary failed with an error of the given kind.
	RecordFallback(ctx context.Context, label, kind string)

	// RecordBreakerTransition records a circuit breaker state change.
	RecordBreakerTransition(ctx context.Context, backend, from, to string)

	// RecordCacheLookup records a response-cache lookup.
	RecordCacheLookup(ctx context.Context, hit bool)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	fallbacks    metric.Int64Counter
	transitions  metric.Int64Counter
	cacheLookups metric.Int64Counter
}

// NewMetrics creates the content-fetch instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	if m.totalCount, err = meter.Int64Counter(
		"content.fetch.total",
		metric.WithDescription("Total number of content fetches"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.errorCount, err = meter.Int64Counter(
		"content.fetch.errors",
		metric.WithDescription("Total number of failed content fetches"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.durationHist, err = meter.Float64Histogram(
		"content.fetch.duration_ms",
		metric.WithDescription("Content fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.fallbacks, err = meter.Int64Counter(
		"content.fallback.total",
		metric.WithDescription("Requests served by the legacy source after a primary failure"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.transitions, err = meter.Int64Counter(
		"content.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, err
	}

	if m.cacheLookups, err = meter.Int64Counter(
		"content.cache.lookups",
		metric.WithDescription("Response cache lookups"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordFetch(ctx context.Context, meta FetchMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordFallback(ctx context.Context, label, kind string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("fetch.label", label),
		attribute.String("error.kind", kind),
	))
}

func (m *metricsImpl) RecordBreakerTransition(ctx context.Context, backend, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker.backend", backend),
		attribute.String("breaker.from", from),
		attribute.String("breaker.to", to),
	))
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cache.hit", hit)))
}

// NewNopMetrics returns a Metrics that records nothing.
func NewNopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordFetch(context.Context, FetchMeta, time.Duration, error)    {}
func (noopMetrics) RecordFallback(context.Context, string, string)                  {}
func (noopMetrics) RecordBreakerTransition(context.Context, string, string, string) {}
func (noopMetrics) RecordCacheLookup(context.Context, bool)                         {}
