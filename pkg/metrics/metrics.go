// Package metrics exposes the Prometheus metrics of the poller.
// All metrics are defined in their respective packages (loader, cache, pool,
// collector, ratelimit) and registered via promauto on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's metrics land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the matching gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/loader):
//   - appliance_requests_total{endpoint, status} (Counter): Device requests by endpoint and HTTP status
//   - appliance_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - appliance_errors_total{class} (Counter): Errors by class (client, server, network, protocol, parse)
//   - appliance_retries_total{error_class} (Counter): Retry attempts
//   - appliance_retry_exhausted_total{error_class} (Counter): Exchanges that used every attempt
//   - appliance_endpoint_loads_total{endpoint, result} (Counter): LoadEndpoint outcomes
//
// Cache Metrics (pkg/cache):
//   - appliance_cache_hits_total{layer="memory|store"} (Counter)
//   - appliance_cache_misses_total (Counter)
//   - appliance_cache_coalesced_total (Counter): Callers served by a pending fetch
//   - appliance_cache_erases_total (Counter)
//   - appliance_cache_errors_total{operation} (Counter): Shared store errors
//
// Pool Metrics (pkg/pool):
//   - appliance_pool_in_flight{pool="loader|collector"} (Gauge)
//   - appliance_pool_wait_seconds{pool} (Histogram)
//
// Collector Metrics (pkg/collector):
//   - appliance_collector_runs_total (Counter)
//   - appliance_collector_run_duration_seconds (Histogram)
//   - appliance_collector_property_failures_total (Counter)
//   - appliance_collector_cancelled_tasks_total (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - appliance_rate_limit_waits_total (Counter)
//   - appliance_rate_limit_wait_seconds (Histogram)
//
// Example Prometheus Queries:
//
//   # Coalescing ratio
//   rate(appliance_cache_coalesced_total[5m]) / rate(appliance_cache_misses_total[5m])
//
//   # Failing properties per collection
//   rate(appliance_collector_property_failures_total[5m]) / rate(appliance_collector_runs_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(appliance_request_duration_seconds_bucket[5m]))
