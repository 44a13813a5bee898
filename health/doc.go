// Package health exposes pipeline state through health checks and HTTP
// probe endpoints. Circuit breakers map naturally onto probe semantics: a
// closed circuit is healthy, a half-open circuit is degraded while probes
// run, and an open circuit means the dependency is down.
//
//	agg := health.NewAggregator()
//	agg.Register("billing-api", health.NewCircuitChecker(pipe))
//	health.RegisterHandlers(mux, agg)
package health
