package health

import (
	"context"
	"time"
)

// Status is a component's health.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one check.
type Result struct {
	Status   Status
	Message  string
	Details  map[string]any
	Duration time.Duration
	Err      error
}

// Healthy returns a healthy result.
func Healthy(msg string) Result { return Result{Status: StatusHealthy, Message: msg} }

// Degraded returns a degraded result.
func Degraded(msg string) Result { return Result{Status: StatusDegraded, Message: msg} }

// Unhealthy returns an unhealthy result.
func Unhealthy(msg string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: msg, Err: err}
}

// With returns r with a detail added.
func (r Result) With(key string, value any) Result {
	details := make(map[string]any, len(r.Details)+1)
	for k, v := range r.Details {
		details[k] = v
	}
	details[key] = value
	r.Details = details
	return r
}

// Checker probes one dependency.
//
// Contract:
//   - Concurrency: Check may be called concurrently.
//   - Context: Check should return promptly once ctx is done.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

type funcChecker struct {
	name string
	fn   func(context.Context) Result
}

func (f funcChecker) Name() string                     { return f.name }
func (f funcChecker) Check(ctx context.Context) Result { return f.fn(ctx) }

// CheckFunc adapts fn into a Checker called name.
func CheckFunc(name string, fn func(context.Context) Result) Checker {
	return funcChecker{name: name, fn: fn}
}
