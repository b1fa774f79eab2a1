package health

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/fragcache/cache"
	"github.com/jonwraymond/fragcache/fragment"
	"github.com/jonwraymond/fragcache/resilience"
)

// ProbeKey is written and removed by CacheCheck.
const ProbeKey = "fragcache:health:probe"

// StoreCheck pings the record store.
func StoreCheck(p fragment.Pinger) Checker {
	return CheckFunc("store", func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Unhealthy("record store unreachable", err)
		}
		return Healthy("record store reachable")
	})
}

// CacheCheck round-trips a probe value through c. A failed write or read is
// degraded rather than unhealthy: fragments still render, uncached.
func CacheCheck(name string, c cache.Cache) Checker {
	return CheckFunc("cache:"+name, func(ctx context.Context) Result {
		want := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		if err := c.Set(ctx, ProbeKey, want, 10*time.Second); err != nil {
			return Degraded("cache write failed").With("error", err.Error())
		}
		got, ok := c.Get(ctx, ProbeKey)
		_ = c.Delete(ctx, ProbeKey)
		if !ok || !bytes.Equal(got, want) {
			return Result{Status: StatusDegraded, Message: "cache probe not readable", Err: ErrProbeMismatch}
		}
		return Healthy("cache round-trip ok")
	})
}

// BreakerCheck reports a circuit breaker's state: open is unhealthy and
// half-open is degraded.
func BreakerCheck(name string, cb *resilience.CircuitBreaker) Checker {
	return CheckFunc("breaker:"+name, func(context.Context) Result {
		state := cb.State()
		var r Result
		switch state {
		case resilience.StateOpen:
			r = Unhealthy("circuit open", resilience.ErrCircuitOpen)
		case resilience.StateHalfOpen:
			r = Degraded("circuit probing")
		default:
			r = Healthy("circuit closed")
		}
		return r.With("state", state.String()).With("failures", cb.Failures())
	})
}

// RegistryCheck reports the identity registry size. It is always healthy.
func RegistryCheck(r *fragment.Registry) Checker {
	return CheckFunc("registry", func(context.Context) Result {
		n := r.Len()
		return Healthy(fmt.Sprintf("%d identities", n)).With("entries", n)
	})
}
