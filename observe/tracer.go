package observe

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RouteMeta describes the route a fetch runs against.
type RouteMeta struct {
	Path []string // Route path, ending with the HTTP method name
	Kind string   // query, infinite or mutation
}

// DottedPath returns the path segments joined by ".".
func (m RouteMeta) DottedPath() string {
	return strings.Join(m.Path, ".")
}

// Method returns the final path segment, or "" for an empty path.
func (m RouteMeta) Method() string {
	if len(m.Path) == 0 {
		return ""
	}
	return m.Path[len(m.Path)-1]
}

// SpanName returns the deterministic span name for this route.
// Format: edenquery.<kind>.<dotted path> or edenquery.<dotted path>
func (m RouteMeta) SpanName() string {
	if m.Kind != "" {
		return "edenquery." + m.Kind + "." + m.DottedPath()
	}
	return "edenquery." + m.DottedPath()
}

// Validate checks that the route has a path.
func (m RouteMeta) Validate() error {
	if len(m.Path) == 0 {
		return ErrMissingRoutePath
	}
	return nil
}

// attributes returns the common telemetry attributes.
func (m RouteMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("route.path", m.DottedPath()),
		attribute.String("route.method", m.Method()),
	}
	if m.Kind != "" {
		attrs = append(attrs, attribute.String("route.kind", m.Kind))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with route-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a route fetch.
	StartSpan(ctx context.Context, meta RouteMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a client span with route metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta RouteMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("route.error", false))

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("route.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RouteMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
