// Package prometheus exposes authcore metrics through
// github.com/prometheus/client_golang.
//
// [Collector] implements prometheus.Collector over
// [authcore.Engine.MetricsSnapshot]. Counters are named authcore_*_total;
// the latency histograms are authcore_validate_latency_seconds and
// authcore_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register
//     the Collector, or mount [Handler].
//   - Mutate engine state.
package prometheus
