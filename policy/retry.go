package policy

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry strategy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero makes the strategy a passthrough.
	MaxRetries int

	// BaseDelay seeds the exponential backoff.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff before jitter is added.
	// Default: 30s
	MaxDelay time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// backoffDelay returns the wait before retry n (1-indexed): the capped
// exponential delay plus uniform jitter in [0, delay/4] to desynchronize
// retrying callers.
func backoffDelay(cfg RetryConfig, retry int) time.Duration {
	d := float64(cfg.BaseDelay) * math.Pow(2, float64(retry-1))
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	delay := time.Duration(d)

	if q := int64(delay / 4); q > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(q + 1))
	}
	return delay
}

// sleepFunc suspends for d or until ctx ends. Injected so tests can run the
// backoff schedule without waiting for it.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runRetry invokes attempt, retrying transient failures up to cfg.MaxRetries
// times. When a breaker is present every attempt after the first re-checks
// admission, and every attempt's outcome is recorded individually, so a
// circuit that opens mid-loop stops the loop. Cancellation during the
// backoff wait yields a canceled outcome, not a failure.
func runRetry[T any](
	ctx context.Context,
	cfg RetryConfig,
	breaker *Breaker,
	sleep sleepFunc,
	onRetry func(ctx context.Context, attempt int, delay time.Duration, cause *ClassifiedError),
	attempt func(ctx context.Context) Outcome[T],
) Outcome[T] {
	cfg = cfg.withDefaults()

	for n := 1; ; n++ {
		if breaker != nil && n > 1 {
			if err := breaker.Allow(); err != nil {
				return Failure[T](Rejection(err))
			}
		}

		out := attempt(ctx)
		recordOutcome(breaker, out)

		if out.Ok() {
			return out
		}
		cause := out.Err()
		if cause.Class != ClassTransient || n > cfg.MaxRetries {
			return out
		}

		delay := backoffDelay(cfg, n)
		if onRetry != nil {
			onRetry(ctx, n, delay, cause)
		}
		if err := sleep(ctx, delay); err != nil {
			return Failure[T](Canceled(err))
		}
	}
}

// recordOutcome feeds one attempt's result into the breaker window.
// Transient failures count against the dependency; permanent failures mean
// the dependency answered and count as healthy samples. Rejections and
// cancellations are not samples, but a canceled attempt still returns the
// half-open probe slot it was admitted with.
func recordOutcome[T any](breaker *Breaker, out Outcome[T]) {
	if breaker == nil {
		return
	}
	if out.Ok() {
		breaker.RecordSuccess()
		return
	}
	switch out.Err().Class {
	case ClassTransient:
		breaker.RecordFailure()
	case ClassPermanent:
		breaker.RecordSuccess()
	case ClassCanceled:
		breaker.RecordCanceled()
	}
}
