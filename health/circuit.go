package health

import (
	"context"
	"fmt"
	"time"

	"github.com/palisade-io/palisade/policy"
)

// CircuitReporter is implemented by pipelines that expose their circuit
// state. policy.Pipeline satisfies it for any result type.
type CircuitReporter interface {
	Name() string
	CircuitStatus() policy.CircuitStatus
}

// circuitChecker maps circuit state onto health status.
type circuitChecker struct {
	reporter CircuitReporter
}

// NewCircuitChecker creates a checker that reports the circuit guarding a
// dependency. A closed circuit is healthy, half-open is degraded, open is
// unhealthy.
func NewCircuitChecker(reporter CircuitReporter) Checker {
	return &circuitChecker{reporter: reporter}
}

func (c *circuitChecker) Name() string {
	return c.reporter.Name()
}

func (c *circuitChecker) Check(ctx context.Context) Result {
	status := c.reporter.CircuitStatus()

	details := map[string]any{
		"state":         status.State.String(),
		"failure_count": status.FailureCount,
		"window_size":   status.WindowSize,
	}
	if !status.LastTransition.IsZero() {
		details["last_transition"] = status.LastTransition.UTC().Format(time.RFC3339)
	}

	switch status.State {
	case policy.CircuitClosed:
		return Healthy("circuit closed").WithDetails(details)
	case policy.CircuitHalfOpen:
		return Degraded("circuit half-open, probing").WithDetails(details)
	default:
		return Unhealthy("circuit open", fmt.Errorf("dependency %s is unavailable", c.reporter.Name())).WithDetails(details)
	}
}
