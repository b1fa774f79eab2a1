package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with fragment span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan is best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for one fragment resolution.
	StartSpan(ctx context.Context, meta FragmentMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome and any error.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// NopTracer returns a tracer whose spans are never recorded.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}

func fragmentAttrs(meta FragmentMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("fragment.name", meta.Name),
		attribute.String("fragment.cache", meta.CacheName()),
	}
	if meta.Site != "" {
		attrs = append(attrs, attribute.String("fragment.site", meta.Site))
	}
	return attrs
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta FragmentMeta) (context.Context, trace.Span) {
	attrs := append(fragmentAttrs(meta),
		attribute.Bool("fragment.user_scoped", meta.UserScoped),
		attribute.Int("fragment.tokens", meta.Tokens),
	)
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(attribute.Bool("fragment.hit", outcome == OutcomeHit))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
