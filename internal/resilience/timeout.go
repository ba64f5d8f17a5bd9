package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that an operation did not finish before its deadline.
type TimeoutError struct {
	Message string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("operation timed out after %s", e.After)
	}
	return fmt.Sprintf("%s (after %s)", e.Message, e.After)
}

// Unwrap lets callers match the error with errors.Is(err, context.DeadlineExceeded).
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

type result[T any] struct {
	value T
	err   error
}

// WithTimeout runs op with a context that expires after timeout.
//
// The derived context is cancelled when the deadline fires, so operations that
// honour ctx stop their in-flight work. Operations that ignore ctx are abandoned:
// WithTimeout returns at the deadline and their eventual result is discarded.
// Cancellation of the parent ctx is reported as-is, not as a TimeoutError.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, message string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		value, err := op(opCtx)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && opCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return zero, &TimeoutError{Message: message, After: timeout}
		}
		return res.value, res.err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Message: message, After: timeout}
	}
}
