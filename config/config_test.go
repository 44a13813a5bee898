package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/palisade-io/palisade/policy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
pipelines:
  billing-api:
    retry:
      max_retries: 3
      base_delay: 100ms
      max_delay: 5s
    circuit_breaker:
      failure_threshold: 0.5
      sampling_duration: 30s
      minimum_throughput: 10
      duration_of_break: 30s
      max_duration_of_break: 4m
      half_open_max_probes: 2
    timeout:
      duration: 2s
      strategy: pessimistic
    bulkhead:
      max_parallel: 20
      max_queue: 10
observability:
  logging:
    level: debug
  metrics:
    enabled: true
    exporter: prometheus
  tracing:
    enabled: true
    exporter: otlp
    sample_pct: 0.25
`

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p, ok := cfg.Pipelines["billing-api"]
	if !ok {
		t.Fatal("expected billing-api pipeline")
	}
	if p.Retry.MaxRetries != 3 {
		t.Errorf("expected max_retries=3, got %d", p.Retry.MaxRetries)
	}
	if p.Retry.BaseDelay.Std() != 100*time.Millisecond {
		t.Errorf("expected base_delay=100ms, got %v", p.Retry.BaseDelay.Std())
	}
	if p.CircuitBreaker.FailureThreshold != 0.5 {
		t.Errorf("expected failure_threshold=0.5, got %v", p.CircuitBreaker.FailureThreshold)
	}
	if p.CircuitBreaker.MaxDurationOfBreak.Std() != 4*time.Minute {
		t.Errorf("expected max_duration_of_break=4m, got %v", p.CircuitBreaker.MaxDurationOfBreak.Std())
	}
	if p.Timeout.Strategy != "pessimistic" {
		t.Errorf("expected pessimistic strategy, got %q", p.Timeout.Strategy)
	}
	if p.Bulkhead.MaxParallel != 20 || p.Bulkhead.MaxQueue != 10 {
		t.Errorf("unexpected bulkhead settings: %+v", p.Bulkhead)
	}

	obs := cfg.Observability
	if obs.Logging.Level != "debug" {
		t.Errorf("expected logging level debug, got %q", obs.Logging.Level)
	}
	if !obs.Metrics.Enabled || obs.Metrics.Exporter != "prometheus" {
		t.Errorf("unexpected metrics settings: %+v", obs.Metrics)
	}
	if obs.Tracing.SamplePct != 0.25 {
		t.Errorf("expected sample_pct=0.25, got %v", obs.Tracing.SamplePct)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
pipelines:
  sparse:
    retry:
      max_retries: 2
    timeout:
      duration: 1s
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := cfg.Pipelines["sparse"]
	if p.Retry.BaseDelay.Std() != 100*time.Millisecond {
		t.Errorf("expected default base_delay=100ms, got %v", p.Retry.BaseDelay.Std())
	}
	if p.Retry.MaxDelay.Std() != 30*time.Second {
		t.Errorf("expected default max_delay=30s, got %v", p.Retry.MaxDelay.Std())
	}
	if p.Timeout.Strategy != "optimistic" {
		t.Errorf("expected default strategy optimistic, got %q", p.Timeout.Strategy)
	}
	if cfg.Observability.Logging.Level != "info" {
		t.Errorf("expected default logging level info, got %q", cfg.Observability.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative retries", `
pipelines:
  p:
    retry:
      max_retries: -1
`},
		{"threshold above one", `
pipelines:
  p:
    circuit_breaker:
      failure_threshold: 1.5
`},
		{"unknown strategy", `
pipelines:
  p:
    timeout:
      duration: 1s
      strategy: hopeful
`},
		{"bad duration", `
pipelines:
  p:
    timeout:
      duration: eventually
`},
		{"malformed yaml", `pipelines: [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfig_Pipeline(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	pc, err := cfg.Pipeline("billing-api")
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if pc.Retry.MaxRetries != 3 {
		t.Errorf("expected max retries 3, got %d", pc.Retry.MaxRetries)
	}
	if pc.Timeout.Strategy != policy.TimeoutPessimistic {
		t.Errorf("expected pessimistic timeout, got %v", pc.Timeout.Strategy)
	}
	if pc.CircuitBreaker.SamplingDuration != 30*time.Second {
		t.Errorf("expected sampling duration 30s, got %v", pc.CircuitBreaker.SamplingDuration)
	}

	// The converted config must construct a pipeline cleanly.
	if _, err := policy.New[string]("billing-api", pc); err != nil {
		t.Errorf("New with loaded config: %v", err)
	}

	if _, err := cfg.Pipeline("absent"); err == nil {
		t.Error("expected error for unknown pipeline")
	}
}

func TestObservability_ObserveConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	oc := cfg.Observability.ObserveConfig("payments", "1.2.3")
	if oc.ServiceName != "payments" || oc.Version != "1.2.3" {
		t.Errorf("unexpected identity: %+v", oc)
	}
	if !oc.Logging.Enabled || oc.Logging.Level != "debug" {
		t.Errorf("unexpected logging config: %+v", oc.Logging)
	}
	if !oc.Metrics.Enabled || oc.Metrics.Exporter != "prometheus" {
		t.Errorf("unexpected metrics config: %+v", oc.Metrics)
	}
	if !oc.Tracing.Enabled || oc.Tracing.SamplePct != 0.25 {
		t.Errorf("unexpected tracing config: %+v", oc.Tracing)
	}

	if err := oc.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}
}

func TestDuration_IntegerNanoseconds(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
pipelines:
  p:
    timeout:
      duration: 1000000000
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Pipelines["p"].Timeout.Duration.Std(); got != time.Second {
		t.Errorf("expected 1s from integer nanoseconds, got %v", got)
	}
}
