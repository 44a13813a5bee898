package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/palisade-io/palisade/policy"
)

// Instrumented wraps a pipeline with tracing, metrics, and logging around
// every execution. The hooks installed via PipelineHooks cover the interior
// events; this covers the whole call.
//
// Contract:
//   - Concurrency: safe for concurrent use when the wrapped pipeline is.
//   - Errors: the outcome of the wrapped pipeline is returned unchanged.
type Instrumented[T any] struct {
	pipe    *policy.Pipeline[T]
	tracer  trace.Tracer
	metrics Metrics
	logger  Logger
}

// Instrument wraps pipe with the observer's telemetry. The metrics argument
// is built once with NewMetrics so instruments are not re-registered per
// pipeline execution.
func Instrument[T any](obs Observer, metrics Metrics, pipe *policy.Pipeline[T]) *Instrumented[T] {
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	logger := obs.Logger()
	if logger == nil {
		logger = &noopLogger{}
	}
	return &Instrumented[T]{
		pipe:    pipe,
		tracer:  obs.Tracer(),
		metrics: metrics,
		logger:  logger.WithPipeline(pipe.Name()),
	}
}

// Execute runs op through the underlying pipeline inside a span named
// resilience.execute, records execution metrics, and logs the result.
func (i *Instrumented[T]) Execute(ctx context.Context, op policy.Operation[T]) policy.Outcome[T] {
	call := policy.CallFrom(ctx)
	if call == nil {
		call = policy.NewCall(i.pipe.Name())
		ctx = policy.WithCall(ctx, call)
	}

	ctx, span := i.tracer.Start(ctx, "resilience.execute",
		trace.WithAttributes(
			attribute.String("operation", call.Operation),
			attribute.String("correlation_id", call.CorrelationID),
		),
	)
	defer span.End()

	start := time.Now()
	out := i.pipe.Execute(ctx, op)
	duration := time.Since(start)

	i.metrics.RecordExecution(ctx, i.pipe.Name(), duration, out.Err())

	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if failure := out.Err(); failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		fields = append(fields,
			Field{Key: "error", Value: failure.Error()},
			Field{Key: "class", Value: failure.Class.String()},
		)
		i.logger.Error(ctx, "execution failed", fields...)
	} else {
		span.SetStatus(codes.Ok, "")
		i.logger.Info(ctx, "execution completed", fields...)
	}

	return out
}

// Pipeline returns the wrapped pipeline.
func (i *Instrumented[T]) Pipeline() *policy.Pipeline[T] {
	return i.pipe
}
