package observe

import (
	"context"
	"time"
)

// ResolveFunc resolves one fragment to its content.
type ResolveFunc func(ctx context.Context, meta FragmentMeta) (string, Outcome, error)

// Middleware wraps fragment resolution with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap returns a ResolveFunc safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
//   - Ownership: content is passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NopMiddleware returns a Middleware that observes nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver builds a Middleware from an Observer's primitives.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics returns the middleware's metrics sink.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap instruments fn.
func (m *Middleware) Wrap(fn ResolveFunc) ResolveFunc {
	return func(ctx context.Context, meta FragmentMeta) (string, Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		content, outcome, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, outcome, err)
		m.metrics.RecordResolve(ctx, meta, outcome, duration, err)

		log := m.logger.WithFragment(meta)
		fields := []Field{
			F("duration_ms", float64(duration.Microseconds())/1000),
			F("outcome", outcome.String()),
		}
		if err != nil {
			fields = append(fields, F("error", err.Error()))
			log.Error(ctx, "fragment resolution failed", fields...)
		} else {
			log.Debug(ctx, "fragment resolved", fields...)
		}

		return content, outcome, err
	}
}
