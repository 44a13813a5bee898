package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAggregator_RegisterAndCheckAll(t *testing.T) {
	agg := NewAggregator()

	agg.Register("ok", NewCheckerFunc("ok", func(ctx context.Context) Result {
		return Healthy("fine")
	}))
	agg.Register("bad", NewCheckerFunc("bad", func(ctx context.Context) Result {
		return Unhealthy("down", errors.New("connection refused"))
	}))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["ok"].Status != StatusHealthy {
		t.Errorf("expected ok to be healthy, got %v", results["ok"].Status)
	}
	if results["bad"].Status != StatusUnhealthy {
		t.Errorf("expected bad to be unhealthy, got %v", results["bad"].Status)
	}
}

func TestAggregator_OverallStatus(t *testing.T) {
	agg := NewAggregator()

	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty is healthy", map[string]Result{}, StatusHealthy},
		{"all healthy", map[string]Result{"a": {Status: StatusHealthy}}, StatusHealthy},
		{"degraded wins over healthy", map[string]Result{
			"a": {Status: StatusHealthy},
			"b": {Status: StatusDegraded},
		}, StatusDegraded},
		{"unhealthy wins over degraded", map[string]Result{
			"a": {Status: StatusDegraded},
			"b": {Status: StatusUnhealthy},
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agg.OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_CheckUnknownName(t *testing.T) {
	agg := NewAggregator()
	_, err := agg.Check(context.Background(), "missing")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("expected ErrCheckerNotFound, got %v", err)
	}
}

func TestAggregator_Unregister(t *testing.T) {
	agg := NewAggregator()
	agg.Register("a", NewCheckerFunc("a", func(ctx context.Context) Result {
		return Healthy("")
	}))
	agg.Unregister("a")

	if names := agg.CheckerNames(); len(names) != 0 {
		t.Errorf("expected no checkers after unregister, got %v", names)
	}
}

func TestAggregator_TimeoutProducesUnhealthy(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond, Parallel: true})

	agg.Register("slow", NewCheckerFunc("slow", func(ctx context.Context) Result {
		select {
		case <-time.After(5 * time.Second):
			return Healthy("")
		case <-ctx.Done():
			return Unhealthy("interrupted", ctx.Err())
		}
	}))

	results := agg.CheckAll(context.Background())
	if results["slow"].Status != StatusUnhealthy {
		t.Errorf("expected slow check to be unhealthy, got %v", results["slow"].Status)
	}
}

func TestAggregator_RegistrationOrderPreserved(t *testing.T) {
	agg := NewAggregator()
	for _, name := range []string{"c", "a", "b"} {
		agg.Register(name, NewCheckerFunc(name, func(ctx context.Context) Result {
			return Healthy("")
		}))
	}

	names := agg.CheckerNames()
	want := []string{"c", "a", "b"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
}
