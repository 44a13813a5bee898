package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/palisade-io/palisade/policy"
)

// Metrics records resilience pipeline metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one pipeline execution with its duration and
	// final failure, nil when the execution succeeded.
	RecordExecution(ctx context.Context, operation string, duration time.Duration, failure *policy.ClassifiedError)

	// RecordRetry records a scheduled retry attempt.
	RecordRetry(ctx context.Context, operation string, attempt int)

	// RecordCircuitTransition records a circuit breaker state change.
	RecordCircuitTransition(ctx context.Context, operation string, from, to policy.CircuitState)

	// RecordBulkheadRejection records an execution turned away at the
	// bulkhead.
	RecordBulkheadRejection(ctx context.Context, operation string)

	// RecordFallback records activation of a fallback level.
	RecordFallback(ctx context.Context, operation string, level int)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter              metric.Meter
	totalCount         metric.Int64Counter
	errorCount         metric.Int64Counter
	durationHist       metric.Float64Histogram
	retryCount         metric.Int64Counter
	circuitTransitions metric.Int64Counter
	bulkheadRejections metric.Int64Counter
	fallbackCount      metric.Int64Counter
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"resilience.exec.total",
		metric.WithDescription("Total number of pipeline executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"resilience.exec.errors",
		metric.WithDescription("Total number of failed pipeline executions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"resilience.exec.duration_ms",
		metric.WithDescription("Pipeline execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"resilience.retry.attempts",
		metric.WithDescription("Total number of retry attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	circuitTransitions, err := meter.Int64Counter(
		"resilience.circuit.transitions",
		metric.WithDescription("Total number of circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	bulkheadRejections, err := meter.Int64Counter(
		"resilience.bulkhead.rejections",
		metric.WithDescription("Total number of executions rejected by the bulkhead"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCount, err := meter.Int64Counter(
		"resilience.fallback.activations",
		metric.WithDescription("Total number of fallback level activations"),
		metric.WithUnit("{activation}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:              meter,
		totalCount:         totalCount,
		errorCount:         errorCount,
		durationHist:       durationHist,
		retryCount:         retryCount,
		circuitTransitions: circuitTransitions,
		bulkheadRejections: bulkheadRejections,
		fallbackCount:      fallbackCount,
	}, nil
}

// NewNoopMetrics creates a Metrics instance that discards everything.
func NewNoopMetrics() Metrics {
	return &noopMetrics{}
}

func operationAttr(operation string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("operation", operation))
}

func (m *metricsImpl) RecordExecution(ctx context.Context, operation string, duration time.Duration, failure *policy.ClassifiedError) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
	}
	if failure != nil {
		attrs = append(attrs, attribute.String("failure.class", failure.Class.String()))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if failure != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordRetry(ctx context.Context, operation string, attempt int) {
	m.retryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("attempt", attempt),
	))
}

func (m *metricsImpl) RecordCircuitTransition(ctx context.Context, operation string, from, to policy.CircuitState) {
	m.circuitTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (m *metricsImpl) RecordBulkheadRejection(ctx context.Context, operation string) {
	m.bulkheadRejections.Add(ctx, 1, operationAttr(operation))
}

func (m *metricsImpl) RecordFallback(ctx context.Context, operation string, level int) {
	m.fallbackCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("level", level),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordExecution(context.Context, string, time.Duration, *policy.ClassifiedError) {
}
func (m *noopMetrics) RecordRetry(context.Context, string, int)                                    {}
func (m *noopMetrics) RecordCircuitTransition(context.Context, string, policy.CircuitState, policy.CircuitState) {
}
func (m *noopMetrics) RecordBulkheadRejection(context.Context, string) {}
func (m *noopMetrics) RecordFallback(context.Context, string, int)     {}
