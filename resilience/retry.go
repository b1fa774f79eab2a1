package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures a Retry.
type RetryConfig struct {
	// MaxAttempts includes the first call. Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. Default: 50ms
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts. Default: 2s
	MaxDelay time.Duration

	// Jitter adds up to 25% random delay to each wait.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: every non-nil error.
	RetryIf func(err error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs failed operations with exponential backoff.
type Retry struct {
	cfg RetryConfig
}

// NewRetry creates a Retry.
func NewRetry(cfg RetryConfig) *Retry {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 50 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = func(err error) bool { return err != nil }
	}
	return &Retry{cfg: cfg}
}

// Execute runs op until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. The last error is returned.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || !r.cfg.RetryIf(err) || attempt >= r.cfg.MaxAttempts {
			return err
		}

		delay := r.Backoff(attempt)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (r *Retry) Backoff(attempt int) time.Duration {
	delay := r.cfg.InitialDelay << (attempt - 1)
	if delay <= 0 || delay > r.cfg.MaxDelay {
		delay = r.cfg.MaxDelay
	}
	if r.cfg.Jitter {
		// #nosec G404 -- timing jitter, not security sensitive.
		delay += time.Duration(rand.Int64N(int64(delay/4) + 1))
	}
	return delay
}
