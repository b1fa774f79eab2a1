package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records fragment resolution metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordResolve records one resolution with its outcome and duration.
	RecordResolve(ctx context.Context, meta FragmentMeta, outcome Outcome, duration time.Duration, err error)

	// RecordCreated records that a new fragment record was persisted.
	RecordCreated(ctx context.Context, meta FragmentMeta)
}

type metricsImpl struct {
	total    metric.Int64Counter
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	errors   metric.Int64Counter
	created  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the fragment instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	var (
		m   metricsImpl
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.total, "fragment.resolve.total", "Total number of fragment resolutions", "{call}"},
		{&m.hits, "fragment.resolve.hits", "Resolutions served from a content cache", "{call}"},
		{&m.misses, "fragment.resolve.misses", "Resolutions that rendered content", "{call}"},
		{&m.errors, "fragment.resolve.errors", "Resolutions that returned an error", "{error}"},
		{&m.created, "fragment.records.created", "Fragment records persisted", "{record}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
	}

	m.duration, err = meter.Float64Histogram(
		"fragment.resolve.duration_ms",
		metric.WithDescription("Fragment resolution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *metricsImpl) RecordResolve(ctx context.Context, meta FragmentMeta, outcome Outcome, duration time.Duration, err error) {
	opt := metric.WithAttributes(fragmentAttrs(meta)...)

	m.total.Add(ctx, 1, opt)
	switch {
	case err != nil:
		m.errors.Add(ctx, 1, opt)
	case outcome == OutcomeHit:
		m.hits.Add(ctx, 1, opt)
	default:
		m.misses.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordCreated(ctx context.Context, meta FragmentMeta) {
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("fragment.name", meta.Name)))
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordResolve(context.Context, FragmentMeta, Outcome, time.Duration, error) {}
func (noopMetrics) RecordCreated(context.Context, FragmentMeta)                                {}
