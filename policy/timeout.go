package policy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutStrategy selects how a single attempt's deadline is enforced.
type TimeoutStrategy int

const (
	// TimeoutOptimistic trusts the operation to observe its context and
	// return promptly when the deadline passes. Preferred: no goroutine
	// outlives the attempt.
	TimeoutOptimistic TimeoutStrategy = iota

	// TimeoutPessimistic races the operation against the deadline in a
	// separate goroutine and abandons it on timeout. The abandoned attempt
	// keeps running in the background until it observes its context or
	// finishes on its own; callers must not assume it stopped. Use only for
	// operations that cannot observe cancellation.
	TimeoutPessimistic
)

func (s TimeoutStrategy) String() string {
	switch s {
	case TimeoutOptimistic:
		return "optimistic"
	case TimeoutPessimistic:
		return "pessimistic"
	default:
		return "unknown"
	}
}

// TimeoutConfig configures the per-attempt timeout.
type TimeoutConfig struct {
	// Duration bounds one attempt. Zero disables the timeout.
	Duration time.Duration

	// Strategy is how the deadline is enforced.
	// Default: TimeoutOptimistic
	Strategy TimeoutStrategy
}

// runTimeout executes one attempt bounded by cfg. A tripped deadline yields
// a transient failure wrapping ErrTimeout; caller cancellation stays a
// canceled outcome.
func runTimeout[T any](ctx context.Context, cfg TimeoutConfig, attempt func(context.Context) Outcome[T]) Outcome[T] {
	if cfg.Duration <= 0 {
		return attempt(ctx)
	}
	if cfg.Strategy == TimeoutPessimistic {
		return pessimisticTimeout(ctx, cfg.Duration, attempt)
	}
	return optimisticTimeout(ctx, cfg.Duration, attempt)
}

func optimisticTimeout[T any](ctx context.Context, d time.Duration, attempt func(context.Context) Outcome[T]) Outcome[T] {
	actx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	out := attempt(actx)
	if out.Ok() {
		return out
	}
	// Rewrite only the deadline error itself, and only when it was this
	// attempt's deadline rather than the caller going away. An unrelated
	// failure that raced the deadline keeps its own class.
	if errors.Is(out.Err(), context.DeadlineExceeded) &&
		errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return Failure[T](Transient(fmt.Errorf("%w after %v", ErrTimeout, d)))
	}
	return out
}

func pessimisticTimeout[T any](ctx context.Context, d time.Duration, attempt func(context.Context) Outcome[T]) Outcome[T] {
	actx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan Outcome[T], 1)
	go func() {
		done <- attempt(actx)
	}()

	select {
	case out := <-done:
		return out
	case <-actx.Done():
		if ctx.Err() != nil {
			return Failure[T](Canceled(ctx.Err()))
		}
		// The attempt is abandoned, not stopped.
		return Failure[T](Transient(fmt.Errorf("%w after %v", ErrTimeout, d)))
	}
}
