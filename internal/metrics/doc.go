// Package metrics exposes crawl counters to Prometheus.
//
// Every Metrics value owns its registry, so tests and multiple pools in one
// process do not collide on the global default registry. A nil *Metrics is
// valid and records nothing.
package metrics
