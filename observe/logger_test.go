package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// decodeLines parses each JSON log line in buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

// TestLogger_IncludesFetchFields verifies fetch fields are present in log output.
func TestLogger_IncludesFetchFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithFetch(FetchMeta{Source: "sanity", Operation: "posts", Label: "blog"}).
		Info(context.Background(), "test message")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	if entry["fetch.source"] != "sanity" {
		t.Errorf("expected fetch.source='sanity', got %v", entry["fetch.source"])
	}
	if entry["fetch.operation"] != "posts" {
		t.Errorf("expected fetch.operation='posts', got %v", entry["fetch.operation"])
	}
	if entry["fetch.label"] != "blog" {
		t.Errorf("expected fetch.label='blog', got %v", entry["fetch.label"])
	}
	if entry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("expected level='info', got %v", entry["level"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("expected timestamp field")
	}
}

// TestLogger_LevelFiltering verifies entries below the level are dropped.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

// TestLogger_Redaction verifies sensitive keys never reach the output.
func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "request",
		Field{Key: "token", Value: "sk-live-123"},
		Field{Key: "Authorization", Value: "Bearer abc"},
		Field{Key: "api_key", Value: "xyz"},
		Field{Key: "slug", Value: "hello-world"},
	)

	out := buf.String()
	for _, secret := range []string{"sk-live-123", "Bearer abc", "xyz"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaked %q: %s", secret, out)
		}
	}

	entry := decodeLines(t, &buf)[0]
	if entry["token"] != "[REDACTED]" {
		t.Errorf("expected token redacted, got %v", entry["token"])
	}
	if entry["slug"] != "hello-world" {
		t.Errorf("expected slug preserved, got %v", entry["slug"])
	}
}

// TestLogger_ErrorValues verifies error values are rendered as strings.
func TestLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Error(context.Background(), "fetch failed", Field{Key: "error", Value: errors.New("connection reset")})

	entry := decodeLines(t, &buf)[0]
	if entry["error"] != "connection reset" {
		t.Errorf("expected error='connection reset', got %v", entry["error"])
	}
}

// TestLogger_With verifies base fields carry over to derived loggers.
func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf).With(Field{Key: "service", Value: "contentd"})

	base.WithFetch(FetchMeta{Source: "legacy"}).Info(context.Background(), "one")

	entry := decodeLines(t, &buf)[0]
	if entry["service"] != "contentd" {
		t.Errorf("expected service='contentd', got %v", entry["service"])
	}
	if entry["fetch.source"] != "legacy" {
		t.Errorf("expected fetch.source='legacy', got %v", entry["fetch.source"])
	}
	if _, ok := entry["fetch.label"]; ok {
		t.Error("empty label should be omitted")
	}
}

// TestLogger_TraceCorrelation verifies span IDs are attached from context.
func TestLogger_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracetest.NewSpanRecorder()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.Info(ctx, "inside span")

	entry := decodeLines(t, &buf)[0]
	if entry["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("expected trace_id %s, got %v", span.SpanContext().TraceID(), entry["trace_id"])
	}
	if entry["span_id"] != span.SpanContext().SpanID().String() {
		t.Errorf("expected span_id %s, got %v", span.SpanContext().SpanID(), entry["span_id"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger_Sync(t *testing.T) {
	if err := NewNopLogger().Sync(); err != nil {
		t.Errorf("Sync() = %v", err)
	}
}
