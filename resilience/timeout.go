package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single external call when no timeout is configured.
const DefaultTimeout = 2 * time.Second

// WithTimeout runs op under a deadline of d (DefaultTimeout when d <= 0).
//
// op receives the bounded context and must honor it. If op returns after the
// deadline passed, or returns context.DeadlineExceeded for the bounded
// context, the result is ErrTimeout wrapping op's error. Cancellation of the
// parent is returned as-is.
func WithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		d = DefaultTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := op(opCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, d, err)
	}
	return err
}
