// Package otel publishes goSession engine metrics as OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and, per latency histogram, a bucket gauge keyed by an "le" attribute plus
// a count gauge. A single callback reads [goSession.Engine.MetricsSnapshot]
// on each collection cycle.
//
// The caller owns the MeterProvider.
package otel
