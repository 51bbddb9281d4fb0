package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// FetchMeta describes one content fetch for telemetry purposes.
type FetchMeta struct {
	Source    string // Backend name: "sanity" or "legacy" (required)
	Operation string // What was fetched, e.g. "posts", "post", "health"
	Label     string // Caller-supplied label (optional)
	Query     string // Query text (optional, recorded on spans only)
}

// SpanName returns the deterministic span name for this fetch.
// Format: content.fetch.<source>.<operation> or content.fetch.<source>
func (m FetchMeta) SpanName() string {
	if m.Operation != "" {
		return "content.fetch." + m.Source + "." + m.Operation
	}
	return "content.fetch." + m.Source
}

// Validate reports whether the metadata can be recorded.
func (m FetchMeta) Validate() error {
	if m.Source == "" {
		return ErrMissingSource
	}
	return nil
}

// maxQueryAttr bounds the query text attached to a span.
const maxQueryAttr = 256

func (m FetchMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("fetch.source", m.Source),
	}
	if m.Operation != "" {
		attrs = append(attrs, attribute.String("fetch.operation", m.Operation))
	}
	if m.Label != "" {
		attrs = append(attrs, attribute.String("fetch.label", m.Label))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with fetch-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a fetch.
	StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("fetch.error", false))
	if meta.Query != "" {
		q := meta.Query
		if len(q) > maxQueryAttr {
			q = q[:maxQueryAttr]
		}
		attrs = append(attrs, attribute.String("fetch.query", q))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("fetch.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
