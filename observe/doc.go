// Package observe provides the telemetry surface for resilience pipelines:
// a structured JSON logger, OpenTelemetry metrics for retry, circuit,
// bulkhead, and fallback events, tracing, and the bridge that turns all of
// it into policy.Hooks.
//
// The Observer bootstraps providers from configuration:
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "payments",
//	    Version:     "1.4.2",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//
// Wire a pipeline's events through hooks:
//
//	metrics, _ := observe.NewMetrics(obs.Meter())
//	pipe, err := policy.New[Quote]("billing-api", cfg,
//	    policy.WithHooks[Quote](observe.PipelineHooks("billing-api", obs.Logger(), metrics)),
//	)
//
// Log entries automatically pick up the operation name and correlation id
// from the policy.Call carried in the context.
package observe
