package resilience

import (
	"context"
	"time"
)

// Executor composes the patterns in this package around an operation.
type Executor struct {
	limiter *RateLimiter
	breaker *CircuitBreaker
	retry   *Retry
	timeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an Executor. With no options it runs op directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateLimiter rejects calls beyond the limiter's rate.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.limiter = rl }
}

// WithCircuitBreaker routes calls through cb.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry retries failed attempts.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// Breaker returns the configured circuit breaker, or nil.
func (e *Executor) Breaker() *CircuitBreaker { return e.breaker }

// Execute runs op through the configured patterns.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	return e.run(ctx, op, true)
}

// ExecuteOnce is Execute without retries, for operations that must not be
// repeated blindly.
func (e *Executor) ExecuteOnce(ctx context.Context, op func(context.Context) error) error {
	return e.run(ctx, op, false)
}

func (e *Executor) run(ctx context.Context, op func(context.Context) error, retry bool) error {
	call := op
	if e.timeout > 0 {
		inner := call
		call = func(ctx context.Context) error { return WithDeadline(ctx, e.timeout, inner) }
	}
	if retry && e.retry != nil {
		inner := call
		call = func(ctx context.Context) error { return e.retry.Execute(ctx, inner) }
	}
	if e.breaker != nil {
		inner := call
		call = func(ctx context.Context) error { return e.breaker.Execute(ctx, inner) }
	}
	if e.limiter != nil {
		inner := call
		call = func(ctx context.Context) error { return e.limiter.Execute(ctx, inner) }
	}
	return call(ctx)
}
