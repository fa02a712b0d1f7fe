// Package prometheus exposes goSession engine metrics to Prometheus.
//
// [PrometheusExporter] implements prometheus.Collector: counters are named
// gosession_*_total and latency histograms gosession_*_latency_seconds.
// Register it with any registry, or mount [PrometheusExporter.Handler] which
// serves it from a private registry.
package prometheus
