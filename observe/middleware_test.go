package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type middlewareHarness struct {
	mw       *Middleware
	spans    *tracetest.SpanRecorder
	reader   *sdkmetric.ManualReader
	logs     *bytes.Buffer
	provider *sdktrace.TracerProvider
}

func newMiddlewareHarness(t *testing.T, level string) *middlewareHarness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	var logs bytes.Buffer
	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter(level, &logs))
	return &middlewareHarness{mw: mw, spans: spans, reader: reader, logs: &logs, provider: tp}
}

// TestMiddleware_SuccessPath verifies successful fetches record telemetry.
func TestMiddleware_SuccessPath(t *testing.T) {
	h := newMiddlewareHarness(t, "debug")
	meta := FetchMeta{Source: "sanity", Operation: "posts"}
	payload := json.RawMessage(`[{"_id":"a"}]`)

	wrapped := h.mw.Wrap(func(ctx context.Context, m FetchMeta) (json.RawMessage, error) {
		return payload, nil
	})
	result, err := wrapped(context.Background(), meta)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !bytes.Equal(result, payload) {
		t.Errorf("expected payload passthrough, got %s", result)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "content.fetch.sanity.posts" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}

	if findMetric(collect(t, h.reader), "content.fetch.total") == nil {
		t.Error("content.fetch.total metric not found")
	}

	entry := decodeLines(t, h.logs)[0]
	if entry["msg"] != "content fetch completed" {
		t.Errorf("unexpected log msg %v", entry["msg"])
	}
	if entry["bytes"] != float64(len(payload)) {
		t.Errorf("expected bytes=%d, got %v", len(payload), entry["bytes"])
	}
}

// TestMiddleware_ErrorPath verifies failures are recorded and returned unchanged.
func TestMiddleware_ErrorPath(t *testing.T) {
	h := newMiddlewareHarness(t, "info")
	fetchErr := errors.New("http status 502")

	wrapped := h.mw.Wrap(func(ctx context.Context, m FetchMeta) (json.RawMessage, error) {
		return nil, fetchErr
	})
	_, err := wrapped(context.Background(), FetchMeta{Source: "sanity", Operation: "posts"})

	if err != fetchErr {
		t.Fatalf("expected original error, got %v", err)
	}

	errs := findMetric(collect(t, h.reader), "content.fetch.errors")
	if errs == nil || sumValue(t, errs) != 1 {
		t.Error("expected content.fetch.errors = 1")
	}

	entry := decodeLines(t, h.logs)[0]
	if entry["level"] != "warn" {
		t.Errorf("expected warn level, got %v", entry["level"])
	}
	if entry["error"] != "http status 502" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
	if entry["fetch.source"] != "sanity" {
		t.Errorf("expected fetch.source, got %v", entry["fetch.source"])
	}
}

// TestMiddleware_PropagatesSpanContext verifies the inner function sees the span.
func TestMiddleware_PropagatesSpanContext(t *testing.T) {
	h := newMiddlewareHarness(t, "info")

	var inner trace.SpanContext
	wrapped := h.mw.Wrap(func(ctx context.Context, m FetchMeta) (json.RawMessage, error) {
		inner = trace.SpanContextFromContext(ctx)
		return nil, nil
	})
	_, _ = wrapped(context.Background(), FetchMeta{Source: "legacy"})

	if !inner.IsValid() {
		t.Fatal("expected a valid span context inside the fetch")
	}
	if inner.SpanID() != h.spans.Ended()[0].SpanContext().SpanID() {
		t.Error("inner span context does not match recorded span")
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	wrapped := mw.Wrap(func(ctx context.Context, m FetchMeta) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})
	if _, err := wrapped(context.Background(), FetchMeta{Source: "sanity"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mw.Metrics() == nil || mw.Logger() == nil {
		t.Error("accessors should return no-op components")
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("expected ErrNilObserver, got %v", err)
	}

	obs, err := NewObserver(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("NewObserver failed: %v", err)
	}
	mw, err := MiddlewareFromObserver(obs)
	if err != nil || mw == nil {
		t.Fatalf("MiddlewareFromObserver() = %v, %v", mw, err)
	}
}
