package policy

import "errors"

// Sentinel errors for pipeline-produced failures.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("policy: circuit breaker is open")

	// ErrTooManyProbes is returned when the half-open trial quota is in use.
	ErrTooManyProbes = errors.New("policy: circuit breaker half-open probe limit reached")

	// ErrBulkheadFull is returned when the bulkhead wait queue is full.
	ErrBulkheadFull = errors.New("policy: bulkhead queue is full")

	// ErrTimeout is returned when a single attempt exceeds its deadline.
	ErrTimeout = errors.New("policy: operation timed out")
)
