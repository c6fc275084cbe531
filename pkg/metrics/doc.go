// Package metrics exposes the fleet's telemetry as Prometheus
// collectors and a small liveness/readiness surface.
//
//	metrics.Handler()                 // /metrics
//	metrics.NewCollector(src).Start(d) // periodic gauge sampler
//	metrics.NewHealth().ReadyHandler()  // /healthz/ready
//
// Counters and histograms are updated inline by the components that
// observe the event (submit, completion, migration); the Collector
// only covers gauges that have no natural event to hang an update off.
package metrics
