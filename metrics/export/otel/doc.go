// Package otel publishes goToken engine metrics through OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per histogram bucket. One callback reads
// [goToken.Engine.MetricsSnapshot] on each collection cycle.
//
// The caller owns the MeterProvider; the exporter never mutates engine state.
package otel
