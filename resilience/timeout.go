package resilience

import (
	"context"
	"errors"
	"time"
)

// WithDeadline runs op with a deadline of d from now. If the deadline, and
// not the caller's context, ends the call, ErrTimeout is returned.
func WithDeadline(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := op(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
