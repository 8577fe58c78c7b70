// Package metric provides Prometheus metrics for rosiels.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry, counters and the /metrics HTTP handler
//   - collector.go: scrape-time collector for host state
//
// Metrics include:
//
//   - Synchronization sweeps by outcome
//   - Configuration notifications by outcome
//   - Worker launches by outcome
//   - Open projects and live worker instances
//
// Every component accepts a nil *Registry and then records nothing.
package metric
