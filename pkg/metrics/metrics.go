// Package metrics exposes the Prometheus registry shared by job-site-monitor.
// All metrics are defined in their respective packages (client, estimator,
// sampling, report, cache, ratelimit) to maintain modularity and avoid
// circular dependencies.
//
// This package provides the HTTP handler and a reference for all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Search Metrics (pkg/client):
//   - jsm_search_requests_total{period, status} (Counter): Requests by period and HTTP status
//   - jsm_search_request_duration_seconds{period} (Histogram): Request duration
//   - jsm_search_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//   - jsm_search_malformed_records_total (Counter): Records that could not be decoded
//   - jsm_search_retries_total{error_class} (Counter): Retry attempts
//   - jsm_search_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - jsm_search_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Throttle Metrics (pkg/ratelimit):
//   - jsm_throttle_active (Gauge): 1 while an upstream cooldown is in effect
//   - jsm_throttle_waits_total (Counter): Requests delayed by a cooldown
//   - jsm_throttle_blocks_total (Counter): Requests refused because the cooldown was too long
//
// Estimator Metrics (pkg/estimator):
//   - jsm_estimate_runs_total{period, outcome} (Counter): Estimation runs
//   - jsm_estimate_duration_seconds{period} (Histogram): Run duration
//   - jsm_estimate_probes_total{phase} (Counter): Page probes by phase
//   - jsm_estimate_probe_failures_total{phase} (Counter): Failed probes by phase
//   - jsm_estimate_native_clamped_total (Counter): Runs with a clamped native count
//   - jsm_estimate_listings{period, source} (Gauge): Counts of the last run
//
// Sampling Metrics (pkg/sampling):
//   - jsm_sampling_runs_total{kind, outcome} (Counter): Regional and page-breakdown runs
//   - jsm_sampling_failed_pages_total{kind} (Counter): Skipped pages
//
// Report Metrics (pkg/report):
//   - jsm_report_runs_total{outcome} (Counter): Report runs
//   - jsm_report_last_success_timestamp_seconds (Gauge): Last successful run
//   - jsm_report_publish_total{outcome} (Counter): Publish attempts
//
// Cache Metrics (pkg/cache):
//   - jsm_cache_hits_total{namespace} (Counter): Cache hits
//   - jsm_cache_misses_total{namespace} (Counter): Cache misses
//   - jsm_cache_written_bytes_total (Counter): Bytes written
//   - jsm_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Partner A share of all listings
//   jsm_estimate_listings{period="ALL",source="PARTNER_A"} /
//   ignoring(source) sum without(source) (jsm_estimate_listings{period="ALL"})
//
//   # Probe failure rate
//   sum(rate(jsm_estimate_probe_failures_total[1h])) / sum(rate(jsm_estimate_probes_total[1h]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(jsm_search_request_duration_seconds_bucket[5m]))
//
//   # Hours since the last report
//   (time() - jsm_report_last_success_timestamp_seconds) / 3600
