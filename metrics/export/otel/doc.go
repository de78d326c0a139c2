// Package otel publishes authcore engine metrics through an OpenTelemetry
// meter supplied by the caller.
//
// Each counter becomes an Int64ObservableCounter with the same name as the
// Prometheus exporter uses. The latency histogram is exposed as one
// cumulative gauge per bucket plus a count gauge.
package otel
