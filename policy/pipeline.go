package policy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Operation is the raw callable a pipeline protects.
type Operation[T any] func(ctx context.Context) (T, error)

// Config holds construction-time settings for one pipeline. A section whose
// key field is zero leaves that strategy disabled: Retry needs MaxRetries,
// CircuitBreaker needs FailureThreshold, Timeout needs Duration, Bulkhead
// needs MaxParallel.
type Config struct {
	Retry          RetryConfig
	CircuitBreaker BreakerConfig
	Timeout        TimeoutConfig
	Bulkhead       BulkheadConfig
}

// Hooks are observability callbacks consumed by the logging/metrics layer.
// Nil hooks are skipped. Hooks must be fast and must not block.
type Hooks struct {
	// OnRetry fires before each backoff wait, with the 1-indexed attempt
	// that just failed and the delay about to be taken.
	OnRetry func(ctx context.Context, attempt int, delay time.Duration, cause *ClassifiedError)

	// OnCircuitChange fires on every circuit state transition.
	OnCircuitChange func(from, to CircuitState)

	// OnBulkheadReject fires when a caller is turned away with a full queue.
	OnBulkheadReject func(ctx context.Context)

	// OnFallback fires before each fallback level runs.
	OnFallback func(ctx context.Context, level int, cause *ClassifiedError)
}

// Pipeline executes operations under a fixed strategy order, outermost
// first:
//
//	bulkhead -> fallback -> circuit breaker -> retry -> timeout -> operation
//
// The order is load-bearing: the bulkhead rejects before any other
// bookkeeping runs, fallback sees every failure inside it including
// circuit-open rejections, each retry attempt is gated by breaker state,
// and the timeout bounds a single attempt rather than the whole loop.
//
// One Pipeline guards one logical dependency (not one request) and is safe
// for concurrent use; circuit and bulkhead state are shared by all callers.
type Pipeline[T any] struct {
	name       string
	config     Config
	classifier Classifier
	breaker    *Breaker
	bulkhead   *Bulkhead
	fallbacks  []FallbackFunc[T]
	hooks      Hooks
	sleep      sleepFunc
}

// Option configures a Pipeline.
type Option[T any] func(*Pipeline[T])

// WithFallbacks appends fallback levels, tried in the order given.
func WithFallbacks[T any](levels ...FallbackFunc[T]) Option[T] {
	return func(p *Pipeline[T]) {
		p.fallbacks = append(p.fallbacks, levels...)
	}
}

// WithHooks sets the observability hooks.
func WithHooks[T any](hooks Hooks) Option[T] {
	return func(p *Pipeline[T]) {
		p.hooks = hooks
	}
}

// WithClassifier replaces the default failure classifier.
func WithClassifier[T any](c Classifier) Option[T] {
	return func(p *Pipeline[T]) {
		p.classifier = c
	}
}

// WithBreaker shares an existing breaker instead of building one from the
// config, for pipelines of different result types guarding the same
// dependency. The pipeline's OnCircuitChange hook is not attached to a
// shared breaker; its owner wires OnStateChange.
func WithBreaker[T any](b *Breaker) Option[T] {
	return func(p *Pipeline[T]) {
		p.breaker = b
	}
}

// WithBulkhead shares an existing bulkhead instead of building one from the
// config.
func WithBulkhead[T any](b *Bulkhead) Option[T] {
	return func(p *Pipeline[T]) {
		p.bulkhead = b
	}
}

// withSleep overrides the backoff wait, for tests.
func withSleep[T any](sleep sleepFunc) Option[T] {
	return func(p *Pipeline[T]) {
		p.sleep = sleep
	}
}

// New creates a pipeline named for the dependency it guards.
func New[T any](name string, cfg Config, opts ...Option[T]) (*Pipeline[T], error) {
	if name == "" {
		return nil, errors.New("policy: pipeline name is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	p := &Pipeline[T]{
		name:       name,
		config:     cfg,
		classifier: DefaultClassifier,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.breaker == nil && cfg.CircuitBreaker.FailureThreshold > 0 {
		bc := cfg.CircuitBreaker
		if hook := p.hooks.OnCircuitChange; hook != nil {
			user := bc.OnStateChange
			bc.OnStateChange = func(from, to CircuitState) {
				if user != nil {
					user(from, to)
				}
				hook(from, to)
			}
		}
		p.breaker = NewBreaker(bc)
	}
	if p.bulkhead == nil && cfg.Bulkhead.MaxParallel > 0 {
		p.bulkhead = NewBulkhead(cfg.Bulkhead)
	}
	return p, nil
}

func validateConfig(cfg Config) error {
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("policy: max retries must be >= 0, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay < 0 || cfg.Retry.MaxDelay < 0 {
		return errors.New("policy: retry delays must be >= 0")
	}
	if t := cfg.CircuitBreaker.FailureThreshold; t < 0 || t > 1 {
		return fmt.Errorf("policy: failure threshold must be within [0, 1], got %v", t)
	}
	if cfg.Timeout.Duration < 0 {
		return errors.New("policy: timeout duration must be >= 0")
	}
	if cfg.Bulkhead.MaxParallel < 0 || cfg.Bulkhead.MaxQueue < 0 {
		return errors.New("policy: bulkhead bounds must be >= 0")
	}
	return nil
}

// Name returns the name of the dependency this pipeline guards.
func (p *Pipeline[T]) Name() string {
	return p.name
}

// Execute runs op through the pipeline and returns its outcome. The context
// gains a *Call with a fresh correlation id when it does not already carry
// one. Execute never panics on op errors; hard failures are reserved for
// construction-time misconfiguration.
func (p *Pipeline[T]) Execute(ctx context.Context, op Operation[T]) Outcome[T] {
	if CallFrom(ctx) == nil {
		ctx = WithCall(ctx, NewCall(p.name))
	}

	// Innermost: one classified attempt under the per-attempt timeout.
	attempt := func(ctx context.Context) Outcome[T] {
		return runTimeout(ctx, p.config.Timeout, func(ctx context.Context) Outcome[T] {
			v, err := op(ctx)
			if err == nil {
				return Success(v)
			}
			return Failure[T](&ClassifiedError{Class: p.classifier(err), Err: err})
		})
	}

	execute := func(ctx context.Context) Outcome[T] {
		return runRetry(ctx, p.config.Retry, p.breaker, p.sleep, p.hooks.OnRetry, attempt)
	}

	if p.breaker != nil {
		inner := execute
		execute = func(ctx context.Context) Outcome[T] {
			// Gate the first attempt here; later attempts are re-checked
			// inside the retry loop.
			if err := p.breaker.Allow(); err != nil {
				return Failure[T](Rejection(err))
			}
			return inner(ctx)
		}
	}

	if len(p.fallbacks) > 0 {
		inner := execute
		execute = func(ctx context.Context) Outcome[T] {
			out := inner(ctx)
			if out.Ok() || out.IsCanceled() {
				return out
			}
			return runFallback(ctx, p.fallbacks, out, p.hooks.OnFallback)
		}
	}

	if p.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) Outcome[T] {
			if err := p.bulkhead.Acquire(ctx); err != nil {
				if errors.Is(err, ErrBulkheadFull) {
					if p.hooks.OnBulkheadReject != nil {
						p.hooks.OnBulkheadReject(ctx)
					}
					return Failure[T](Rejection(err))
				}
				return Failure[T](Canceled(err))
			}
			defer p.bulkhead.Release()
			return inner(ctx)
		}
	}

	return execute(ctx)
}

// CircuitStatus reports the guarded circuit for health endpoints. A
// pipeline without a breaker reports a permanently closed circuit.
func (p *Pipeline[T]) CircuitStatus() CircuitStatus {
	if p.breaker == nil {
		return CircuitStatus{State: CircuitClosed}
	}
	return p.breaker.Status()
}

// BulkheadStats reports bulkhead counters; zero when no bulkhead is
// configured.
func (p *Pipeline[T]) BulkheadStats() BulkheadStats {
	if p.bulkhead == nil {
		return BulkheadStats{}
	}
	return p.bulkhead.Stats()
}
