package policy

import (
	"context"
	"fmt"
)

// FallbackFunc supplies a substitute value after the wrapped pipeline has
// failed. cause is the failure that triggered the fallback.
type FallbackFunc[T any] func(ctx context.Context, cause *ClassifiedError) (T, error)

// Static returns a fallback level that always succeeds with value.
func Static[T any](value T) FallbackFunc[T] {
	return func(context.Context, *ClassifiedError) (T, error) {
		return value, nil
	}
}

// runFallback tries each level in order. A level that returns an error or
// panics is skipped in favor of the next. If every level fails, the
// original failure is returned unchanged so callers can still tell why the
// pipeline gave up.
func runFallback[T any](
	ctx context.Context,
	levels []FallbackFunc[T],
	failed Outcome[T],
	onFallback func(ctx context.Context, level int, cause *ClassifiedError),
) Outcome[T] {
	cause := failed.Err()
	for i, level := range levels {
		if onFallback != nil {
			onFallback(ctx, i, cause)
		}
		if v, err := tryLevel(ctx, level, cause); err == nil {
			return Success(v)
		}
	}
	return failed
}

func tryLevel[T any](ctx context.Context, level FallbackFunc[T], cause *ClassifiedError) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy: fallback level panicked: %v", r)
		}
	}()
	return level(ctx, cause)
}
