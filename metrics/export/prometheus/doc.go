// Package prometheus exposes authcore engine metrics as a Prometheus
// collector.
//
// Register an [Exporter] with your own registry or mount [Exporter.Handler].
// Counters are named authcore_*_total and the validation latency histogram is
// authcore_validate_latency_seconds.
package prometheus
