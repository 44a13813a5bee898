// Package policy implements a composable resilience pipeline for calls to
// unreliable dependencies.
//
// Every strategy operates on a uniform Outcome type: an operation either
// produced a value or failed with a classified error. Strategies are small
// independent wrappers combined by Pipeline in a fixed order rather than an
// inheritance hierarchy.
//
// # Strategies
//
//   - Retry: re-invokes transient failures with capped, jittered exponential
//     backoff.
//
//   - Circuit breaker: tracks a rolling failure ratio per protected
//     operation and fast-fails callers while the dependency is unhealthy.
//
//   - Timeout: bounds a single attempt, either by trusting the operation to
//     observe its context (optimistic) or by racing it in a goroutine
//     (pessimistic).
//
//   - Bulkhead: caps concurrent executions with a bounded FIFO wait queue.
//
//   - Fallback: substitutes a value from an ordered list of fallback levels
//     once the inner pipeline has given up.
//
// # Usage
//
//	pipe, err := policy.New[Quote]("billing-api", policy.Config{
//	    Retry:          policy.RetryConfig{MaxRetries: 3, BaseDelay: 100 * time.Millisecond},
//	    CircuitBreaker: policy.BreakerConfig{FailureThreshold: 0.5, MinimumThroughput: 4},
//	    Timeout:        policy.TimeoutConfig{Duration: 2 * time.Second},
//	    Bulkhead:       policy.BulkheadConfig{MaxParallel: 8, MaxQueue: 16},
//	}, policy.WithFallbacks(policy.Static(cachedQuote)))
//	if err != nil {
//	    return err
//	}
//
//	out := pipe.Execute(ctx, func(ctx context.Context) (Quote, error) {
//	    return client.FetchQuote(ctx)
//	})
//	quote, err := out.Unpack()
//
// A Pipeline guards one logical dependency and is shared by all of its
// callers; circuit and bulkhead state live for the life of the Pipeline.
package policy
