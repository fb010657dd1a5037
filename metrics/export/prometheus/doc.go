// Package prometheus renders goToken engine metrics in Prometheus text exposition format.
//
// [NewPrometheusExporter] wraps a [goToken.Engine] and exposes an [http.Handler]. Counters are
// named gotoken_*_total; the issue and validate latency histograms are
// gotoken_issue_latency_seconds and gotoken_validate_latency_seconds and appear only when the
// engine records them.
//
// Nothing is registered in a global registry; callers mount the handler.
package prometheus
