package observe

import (
	"context"
	"time"

	"github.com/palisade-io/palisade/policy"
)

// PipelineHooks bridges a pipeline's events into the logger and metrics.
// Either argument may be nil, in which case that side is skipped. The
// operation is the logical dependency name the pipeline guards.
func PipelineHooks(operation string, logger Logger, metrics Metrics) policy.Hooks {
	if logger == nil {
		logger = &noopLogger{}
	} else {
		logger = logger.WithPipeline(operation)
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}

	return policy.Hooks{
		OnRetry: func(ctx context.Context, attempt int, delay time.Duration, cause *policy.ClassifiedError) {
			metrics.RecordRetry(ctx, operation, attempt)
			logger.Warn(ctx, "retrying after failure",
				Field{Key: "attempt", Value: attempt},
				Field{Key: "delay_ms", Value: delay.Milliseconds()},
				Field{Key: "cause", Value: cause.Error()},
				Field{Key: "class", Value: cause.Class.String()},
			)
		},

		OnCircuitChange: func(from, to policy.CircuitState) {
			// State changes fire from inside the breaker with no request
			// context in scope.
			ctx := context.Background()
			metrics.RecordCircuitTransition(ctx, operation, from, to)
			logger.Warn(ctx, "circuit state changed",
				Field{Key: "from", Value: from.String()},
				Field{Key: "to", Value: to.String()},
			)
		},

		OnBulkheadReject: func(ctx context.Context) {
			metrics.RecordBulkheadRejection(ctx, operation)
			logger.Warn(ctx, "bulkhead rejected execution")
		},

		OnFallback: func(ctx context.Context, level int, cause *policy.ClassifiedError) {
			metrics.RecordFallback(ctx, operation, level)
			logger.Info(ctx, "fallback level activated",
				Field{Key: "level", Value: level},
				Field{Key: "cause", Value: cause.Error()},
				Field{Key: "class", Value: cause.Class.String()},
			)
		},
	}
}
