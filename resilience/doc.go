// Package resilience guards calls to fragment collaborators.
//
// The record store client runs every query through an Executor composed of
// a circuit breaker, a per-attempt timeout, and (for reads) a retry policy.
// The admin API uses a KeyedRateLimiter per caller. The fragment engine
// itself never retries.
//
// Composition order, outermost first:
//
//	rate limiter -> circuit breaker -> retry -> timeout -> op
//
// so a retried call counts once against the breaker and each attempt gets
// its own deadline.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  5,
//	        ResetTimeout: 30 * time.Second,
//	    })),
//	    resilience.WithTimeout(2 * time.Second),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
package resilience
