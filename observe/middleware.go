package observe

import (
	"context"
	"encoding/json"
	"time"
)

// FetchFunc is the signature of a single content fetch.
type FetchFunc func(ctx context.Context, meta FetchMeta) (json.RawMessage, error)

// Middleware wraps content fetches with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe FetchFunc.
//   - Context: the span context is propagated to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = NewNopMetrics()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NewNopMiddleware returns a Middleware that records nothing.
func NewNopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Wrap wraps fn with a span, fetch metrics and one log line per call.
func (m *Middleware) Wrap(fn FetchFunc) FetchFunc {
	return func(ctx context.Context, meta FetchMeta) (json.RawMessage, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordFetch(ctx, meta, duration, err)

		fetchLogger := m.logger.WithFetch(meta)
		fields := []Field{
			{Key: "duration_ms", Value: duration.Milliseconds()},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			fetchLogger.Warn(ctx, "content fetch failed", fields...)
		} else {
			fields = append(fields, Field{Key: "bytes", Value: len(result)})
			fetchLogger.Debug(ctx, "content fetch completed", fields...)
		}

		return result, err
	}
}

// Metrics returns the middleware's metrics recorder.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
