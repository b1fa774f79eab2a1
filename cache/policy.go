package cache

import "time"

// Policy bounds the TTLs applied to fragment writes.
type Policy struct {
	// DefaultTTL is used when a caller supplies no TTL expression.
	DefaultTTL time.Duration

	// MaxTTL caps every TTL. Zero means no cap.
	MaxTTL time.Duration
}

// DefaultPolicy returns a policy with a 5 minute default and no cap.
func DefaultPolicy() Policy {
	return Policy{DefaultTTL: 5 * time.Minute}
}

// Clamp limits ttl to MaxTTL when one is set.
func (p Policy) Clamp(ttl time.Duration) time.Duration {
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		return p.MaxTTL
	}
	return ttl
}

// EffectiveTTL returns ttl, or DefaultTTL when absent is true, clamped to MaxTTL.
func (p Policy) EffectiveTTL(ttl time.Duration, absent bool) time.Duration {
	if absent {
		ttl = p.DefaultTTL
	}
	return p.Clamp(ttl)
}
