package observe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// BenchmarkLogger_Info measures JSON encoding of a typical fetch line.
func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard).WithFetch(FetchMeta{Source: "sanity", Operation: "posts"})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "content fetch completed",
			Field{Key: "duration_ms", Value: int64(12)},
			Field{Key: "token", Value: "redacted"},
		)
	}
}

// BenchmarkMetrics_RecordFetch measures instrument overhead.
func BenchmarkMetrics_RecordFetch(b *testing.B) {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := newMetrics(mp.Meter("bench"))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	meta := FetchMeta{Source: "sanity", Operation: "posts"}
	fetchErr := errors.New("boom")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var err error
		if i%10 == 0 {
			err = fetchErr
		}
		m.RecordFetch(ctx, meta, time.Millisecond, err)
	}
}

// BenchmarkMiddleware_Wrap measures the full per-fetch telemetry path.
func BenchmarkMiddleware_Wrap(b *testing.B) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	metrics, _ := newMetrics(mp.Meter("bench"))
	mw := NewMiddleware(NewTracer(tp.Tracer("bench")), metrics, NewLoggerWithWriter("info", io.Discard))

	payload := json.RawMessage(`{"result":[]}`)
	fetch := mw.Wrap(func(ctx context.Context, meta FetchMeta) (json.RawMessage, error) {
		return payload, nil
	})
	ctx := context.Background()
	meta := FetchMeta{Source: "sanity", Operation: "posts"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fetch(ctx, meta)
	}
}
