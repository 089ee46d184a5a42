package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. fn runs to completion and its own result is returned, so
// work that finished just past the deadline is still reported as done. A
// failure caused by the deadline wraps context.DeadlineExceeded and names
// the operation. fn must honour ctx for the limit to take effect.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(timeoutCtx)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return v, fmt.Errorf("%s: parent context cancelled: %w", name, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return v, fmt.Errorf("%s: %w (limit: %v)", name, err, timeout)
	}
	return v, err
}
