// Package observability provides the in-process observability engine for
// Agent Pulse: a metrics aggregator (counters, gauges, histograms, timers,
// per-endpoint request tracking) and an error tracker that classifies
// failures, deduplicates them into recurring events, evaluates alert rules,
// and dispatches alerts to configured sinks.
package observability
