// Package metrics provides the Prometheus registry and HTTP handler for the
// replaying proxy. All metrics are defined in their respective packages
// (cache, client, proxy) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer exposes the metrics collected in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving the collected metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - replay_proxy_cache_hits_total (Counter): Lookups answered from the cache
//   - replay_proxy_cache_misses_total (Counter): Lookups with no live entry
//   - replay_proxy_cache_entries (Gauge): Indexed entries, expired ones included
//   - replay_proxy_cache_errors_total{operation} (Counter): Cache file I/O errors
//   - replay_proxy_cache_files_removed_total{reason} (Counter): Files deleted by reset or compaction
//
// Backend Metrics (pkg/client):
//   - replay_proxy_backend_requests_total{method, status} (Counter): Backend calls by method and HTTP status
//   - replay_proxy_backend_request_duration_seconds{method} (Histogram): Backend call duration
//
// Request Metrics (pkg/proxy):
//   - replay_proxy_requests_total{outcome} (Counter): Inbound requests by outcome
//     (hit, miss, favicon, unsupported_method, backend_error, cache_error)
//
// Example Prometheus Queries:
//
//   # Replay Rate
//   sum(rate(replay_proxy_cache_hits_total[5m])) /
//   (sum(rate(replay_proxy_cache_hits_total[5m])) + sum(rate(replay_proxy_cache_misses_total[5m])))
//
//   # Backend Failures
//   rate(replay_proxy_backend_requests_total{status=~"network_error|timeout_error"}[5m])
//
//   # P95 Backend Latency
//   histogram_quantile(0.95, rate(replay_proxy_backend_request_duration_seconds_bucket[5m]))
