// Package metrics exposes the Prometheus metrics registered by the client
// packages. Metrics are defined next to the code that records them and
// registered on the default registry through promauto.
//
// Token management (pkg/auth):
//   - falcon_token_refreshes_total{result}
//   - falcon_token_refresh_duration_seconds
//   - falcon_token_expiry_timestamp_seconds
//
// Retries (pkg/retry):
//   - falcon_retries_total{operation}
//   - falcon_retry_exhausted_total{operation}
//
// Pagination (pkg/pagination):
//   - falcon_pages_fetched_total{operation}
//   - falcon_page_items_total{operation}
//
// Requests (pkg/client):
//   - falcon_requests_total{endpoint, status}
//   - falcon_request_duration_seconds{endpoint}
//   - falcon_errors_total{class}
//   - falcon_api_level_errors_total{endpoint}
//
// Rate limit (pkg/ratelimit):
//   - falcon_rate_limit_remaining, falcon_rate_limit_limit
//   - falcon_rate_limit_low_total
//   - falcon_throttle_wait_seconds
//
// Cache (pkg/cache):
//   - falcon_cache_hits_total{resource}, falcon_cache_misses_total{resource}
//   - falcon_cache_written_bytes_total{resource}
//   - falcon_cache_errors_total{operation}
//
// Example queries:
//
//	# Token refresh failures
//	rate(falcon_token_refreshes_total{result="failure"}[5m])
//
//	# Device cache hit rate
//	sum(rate(falcon_cache_hits_total{resource="device"}[5m])) /
//	(sum(rate(falcon_cache_hits_total{resource="device"}[5m])) + sum(rate(falcon_cache_misses_total{resource="device"}[5m])))
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(falcon_request_duration_seconds_bucket[5m]))
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is where the client packages register their metrics.
var Registry = prometheus.DefaultRegisterer

// Gatherer serves the metrics in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the client metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}
