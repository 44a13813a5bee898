package policy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Class buckets a failure by how the pipeline treats it.
type Class int

const (
	// ClassTransient marks failures expected to be temporary: timeouts,
	// connection resets, 5xx-style dependency errors. Eligible for retry and
	// counted by the circuit breaker.
	ClassTransient Class = iota

	// ClassPermanent marks failures a retry cannot fix, such as validation
	// and 4xx-style errors. Never retried.
	ClassPermanent

	// ClassRejection marks failures produced by the pipeline itself before
	// the operation ran: circuit open, half-open probe limit, bulkhead full.
	ClassRejection

	// ClassCanceled marks caller cancellation. Not retried, not counted by
	// the circuit breaker, and fallback is skipped.
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassRejection:
		return "rejection"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ClassifiedError pairs an underlying error with its class. It is created at
// the boundary where a raw operation error is first observed.
type ClassifiedError struct {
	Class Class
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient failure.
func Transient(err error) *ClassifiedError {
	return &ClassifiedError{Class: ClassTransient, Err: err}
}

// Permanent wraps err as a permanent failure.
func Permanent(err error) *ClassifiedError {
	return &ClassifiedError{Class: ClassPermanent, Err: err}
}

// Rejection wraps err as a pipeline rejection.
func Rejection(err error) *ClassifiedError {
	return &ClassifiedError{Class: ClassRejection, Err: err}
}

// Canceled wraps err as a cancellation.
func Canceled(err error) *ClassifiedError {
	return &ClassifiedError{Class: ClassCanceled, Err: err}
}

// Classifier decides the class of a raw operation error. It is only called
// with non-nil errors.
type Classifier func(err error) Class

// DefaultClassifier treats context cancellation as canceled, context
// deadlines as transient, and everything else as transient. Per-attempt
// timeouts and dependency hiccups are worth retrying; anything the caller
// knows to be permanent should use a custom Classifier.
func DefaultClassifier(err error) Class {
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassTransient
}

// ClassifyHTTPStatus maps an HTTP response status to a class. Server errors,
// timeouts, and throttling are transient; other client errors are permanent.
func ClassifyHTTPStatus(status int) Class {
	switch {
	case status >= http.StatusInternalServerError:
		return ClassTransient
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return ClassTransient
	case status >= http.StatusBadRequest:
		return ClassPermanent
	default:
		return ClassTransient
	}
}

// Outcome is the uniform result every strategy operates on: either a value
// or a classified failure, never both.
type Outcome[T any] struct {
	value T
	err   *ClassifiedError
}

// Success returns a successful outcome carrying value.
func Success[T any](value T) Outcome[T] {
	return Outcome[T]{value: value}
}

// Failure returns a failed outcome carrying err.
func Failure[T any](err *ClassifiedError) Outcome[T] {
	if err == nil {
		err = Permanent(errors.New("policy: failure constructed with nil error"))
	}
	return Outcome[T]{err: err}
}

// Ok reports whether the outcome is a success.
func (o Outcome[T]) Ok() bool {
	return o.err == nil
}

// Value returns the success value, or the zero value on failure.
func (o Outcome[T]) Value() T {
	return o.value
}

// Err returns the classified failure, or nil on success.
func (o Outcome[T]) Err() *ClassifiedError {
	return o.err
}

// IsCanceled reports whether the outcome is a cancellation.
func (o Outcome[T]) IsCanceled() bool {
	return o.err != nil && o.err.Class == ClassCanceled
}

// Unpack converts the outcome into the conventional (value, error) pair.
func (o Outcome[T]) Unpack() (T, error) {
	if o.err == nil {
		return o.value, nil
	}
	return o.value, o.err
}
