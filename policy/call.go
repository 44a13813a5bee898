package policy

import (
	"context"

	"github.com/google/uuid"
)

// Call carries per-invocation metadata through the pipeline: the logical
// operation name, a correlation id for logs and metrics, and an optional
// key/value bag. A Call lives for one Execute and is never shared across
// invocations.
type Call struct {
	Operation     string
	CorrelationID string
	values        map[string]any
}

// NewCall creates a Call for operation with a fresh correlation id.
func NewCall(operation string) *Call {
	return &Call{
		Operation:     operation,
		CorrelationID: uuid.NewString(),
	}
}

// Set stores a value under key.
func (c *Call) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Get retrieves the value stored under key.
func (c *Call) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

type callContextKey struct{}

// WithCall returns a context carrying call.
func WithCall(ctx context.Context, call *Call) context.Context {
	return context.WithValue(ctx, callContextKey{}, call)
}

// CallFrom returns the Call carried by ctx, or nil.
func CallFrom(ctx context.Context) *Call {
	call, _ := ctx.Value(callContextKey{}).(*Call)
	return call
}
