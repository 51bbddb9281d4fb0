package content

import (
	"context"

	"github.com/jonwraymond/contentops/observe"
	"github.com/jonwraymond/contentops/resilience"
)

// Fallback carries the logger and metrics used when the primary source fails.
type Fallback struct {
	logger  observe.Logger
	metrics observe.Metrics
}

// NewFallback creates a Fallback. Nil arguments are replaced with no-ops.
func NewFallback(logger observe.Logger, metrics observe.Metrics) *Fallback {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	if metrics == nil {
		metrics = observe.NewNopMetrics()
	}
	return &Fallback{logger: logger, metrics: metrics}
}

// ExecuteWithFallback reads from primary and, if that fails, from legacy.
//
// A primary success yields an Envelope with SourceSanity and no error. On
// primary failure the error is classified, logged and counted, and legacy is
// called; its result passes through transform and is returned with
// SourceLegacy, a nil Error and the primary failure in PrimaryFailure. When
// legacy or transform fails as well, a *FallbackError holding both failures
// is returned. When ctx ends during the primary read, ctx.Err() is returned
// without trying legacy.
func ExecuteWithFallback[T, L any](
	ctx context.Context,
	f *Fallback,
	label string,
	primary func(context.Context) (T, error),
	legacy func(context.Context) (L, error),
	transform func(L) (T, error),
) (Envelope[T], error) {
	if f == nil {
		f = NewFallback(nil, nil)
	}
	requestID := RequestID(ctx)

	data, err := primary(ctx)
	if err == nil {
		return Envelope[T]{Data: data, Source: SourceSanity, RequestID: requestID}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Nobody is waiting for the answer; neither source is at fault.
		return Envelope[T]{RequestID: requestID}, ctxErr
	}

	primaryErr := resilience.Classify(err)
	f.logger.Warn(ctx, "primary content source failed, using legacy",
		observe.Field{Key: "label", Value: label},
		observe.Field{Key: "kind", Value: primaryErr.Kind.String()},
		observe.Field{Key: "error", Value: primaryErr.Error()},
		observe.Field{Key: "request_id", Value: requestID},
	)
	f.metrics.RecordFallback(ctx, label, primaryErr.Kind.String())

	raw, err := legacy(ctx)
	if err == nil {
		var out T
		out, err = transform(raw)
		if err == nil {
			return Envelope[T]{
				Data:           out,
				Source:         SourceLegacy,
				PrimaryFailure: primaryErr,
				RequestID:      requestID,
			}, nil
		}
	}

	f.logger.Error(ctx, "legacy content source failed",
		observe.Field{Key: "label", Value: label},
		observe.Field{Key: "error", Value: err.Error()},
		observe.Field{Key: "request_id", Value: requestID},
	)
	return Envelope[T]{RequestID: requestID}, &FallbackError{Label: label, Primary: primaryErr, Legacy: err}
}

// BreakerObserver returns a CircuitBreakerConfig.OnStateChange hook that logs
// and counts transitions of the named backend's breaker.
func BreakerObserver(backend string, logger observe.Logger, metrics observe.Metrics) func(from, to resilience.State) {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	if metrics == nil {
		metrics = observe.NewNopMetrics()
	}
	return func(from, to resilience.State) {
		ctx := context.Background()
		fields := []observe.Field{
			{Key: "backend", Value: backend},
			{Key: "from", Value: from.String()},
			{Key: "to", Value: to.String()},
		}
		if to == resilience.StateOpen {
			logger.Warn(ctx, "circuit breaker opened", fields...)
		} else {
			logger.Info(ctx, "circuit breaker state changed", fields...)
		}
		metrics.RecordBreakerTransition(ctx, backend, from.String(), to.String())
	}
}
