// Package config loads resilience pipeline configuration from YAML files,
// mirroring the per-dependency layout services keep in their settings files,
// and converts it into policy configs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/palisade-io/palisade/observe"
	"github.com/palisade-io/palisade/policy"
)

// Duration accepts YAML scalars like "100ms" or "2s" as well as integer
// nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("config: invalid duration value %v", raw)
	}
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root of a configuration file.
type Config struct {
	// Pipelines maps a logical dependency name to its resilience settings.
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`

	Observability Observability `yaml:"observability"`
}

// PipelineConfig configures one pipeline. Omitted sections leave the
// corresponding strategy disabled.
type PipelineConfig struct {
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Timeout        TimeoutConfig        `yaml:"timeout"`
	Bulkhead       BulkheadConfig       `yaml:"bulkhead"`
}

type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	BaseDelay  Duration `yaml:"base_delay"`
	MaxDelay   Duration `yaml:"max_delay"`
}

type CircuitBreakerConfig struct {
	FailureThreshold   float64  `yaml:"failure_threshold"`
	SamplingDuration   Duration `yaml:"sampling_duration"`
	MinimumThroughput  int      `yaml:"minimum_throughput"`
	DurationOfBreak    Duration `yaml:"duration_of_break"`
	MaxDurationOfBreak Duration `yaml:"max_duration_of_break"`
	HalfOpenMaxProbes  int      `yaml:"half_open_max_probes"`
}

type TimeoutConfig struct {
	Duration Duration `yaml:"duration"`
	Strategy string   `yaml:"strategy"` // "optimistic" or "pessimistic"
}

type BulkheadConfig struct {
	MaxParallel int `yaml:"max_parallel"`
	MaxQueue    int `yaml:"max_queue"`
}

// Observability configures the observe package.
type Observability struct {
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"metrics"`
	Tracing struct {
		Enabled   bool    `yaml:"enabled"`
		Exporter  string  `yaml:"exporter"`
		SamplePct float64 `yaml:"sample_pct"`
	} `yaml:"tracing"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	for name, p := range c.Pipelines {
		if p.Retry.MaxRetries > 0 {
			if p.Retry.BaseDelay == 0 {
				p.Retry.BaseDelay = Duration(100 * time.Millisecond)
			}
			if p.Retry.MaxDelay == 0 {
				p.Retry.MaxDelay = Duration(30 * time.Second)
			}
		}
		if p.Timeout.Duration > 0 && p.Timeout.Strategy == "" {
			p.Timeout.Strategy = "optimistic"
		}
		c.Pipelines[name] = p
	}
}

// Validate checks every pipeline section for out-of-range values.
func (c *Config) Validate() error {
	for name, p := range c.Pipelines {
		if err := p.validate(); err != nil {
			return fmt.Errorf("config: pipeline %q: %w", name, err)
		}
	}
	return nil
}

func (p PipelineConfig) validate() error {
	if p.Retry.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", p.Retry.MaxRetries)
	}
	if p.Retry.BaseDelay < 0 || p.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must be >= 0")
	}
	if t := p.CircuitBreaker.FailureThreshold; t < 0 || t > 1 {
		return fmt.Errorf("failure_threshold must be within [0, 1], got %v", t)
	}
	if p.Timeout.Duration < 0 {
		return fmt.Errorf("timeout duration must be >= 0")
	}
	switch p.Timeout.Strategy {
	case "", "optimistic", "pessimistic":
	default:
		return fmt.Errorf("unknown timeout strategy %q", p.Timeout.Strategy)
	}
	if p.Bulkhead.MaxParallel < 0 || p.Bulkhead.MaxQueue < 0 {
		return fmt.Errorf("bulkhead bounds must be >= 0")
	}
	return nil
}

// Pipeline converts the named pipeline section into a policy.Config.
func (c *Config) Pipeline(name string) (policy.Config, error) {
	p, ok := c.Pipelines[name]
	if !ok {
		return policy.Config{}, fmt.Errorf("config: pipeline %q not found", name)
	}
	return p.Policy(), nil
}

// Policy converts the section into the engine's configuration type.
func (p PipelineConfig) Policy() policy.Config {
	strategy := policy.TimeoutOptimistic
	if p.Timeout.Strategy == "pessimistic" {
		strategy = policy.TimeoutPessimistic
	}
	return policy.Config{
		Retry: policy.RetryConfig{
			MaxRetries: p.Retry.MaxRetries,
			BaseDelay:  p.Retry.BaseDelay.Std(),
			MaxDelay:   p.Retry.MaxDelay.Std(),
		},
		CircuitBreaker: policy.BreakerConfig{
			FailureThreshold:   p.CircuitBreaker.FailureThreshold,
			SamplingDuration:   p.CircuitBreaker.SamplingDuration.Std(),
			MinimumThroughput:  p.CircuitBreaker.MinimumThroughput,
			DurationOfBreak:    p.CircuitBreaker.DurationOfBreak.Std(),
			MaxDurationOfBreak: p.CircuitBreaker.MaxDurationOfBreak.Std(),
			HalfOpenMaxProbes:  p.CircuitBreaker.HalfOpenMaxProbes,
		},
		Timeout: policy.TimeoutConfig{
			Duration: p.Timeout.Duration.Std(),
			Strategy: strategy,
		},
		Bulkhead: policy.BulkheadConfig{
			MaxParallel: p.Bulkhead.MaxParallel,
			MaxQueue:    p.Bulkhead.MaxQueue,
		},
	}
}

// ObserveConfig converts the observability section for observe.NewObserver.
func (o Observability) ObserveConfig(serviceName, version string) observe.Config {
	return observe.Config{
		ServiceName: serviceName,
		Version:     version,
		Logging: observe.LoggingConfig{
			Enabled: o.Logging.Level != "",
			Level:   o.Logging.Level,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics.Enabled,
			Exporter: o.Metrics.Exporter,
		},
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			SamplePct: o.Tracing.SamplePct,
		},
	}
}
