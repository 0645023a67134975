// Package metrics exposes the Prometheus gatherer used by the processor and
// writes it out for the node_exporter textfile collector.
//
// Metrics themselves are defined next to the code that updates them
// (client, ratelimit, cache, processor) and registered via promauto.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer is the default Prometheus gatherer.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all registered metrics to path in the text exposition
// format. The file is written atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - sincera_rate_limit_dispatches_total (Counter): dispatch slots granted
//   - sincera_rate_limit_waits_total (Counter): dispatches that had to wait
//   - sincera_rate_limit_wait_seconds (Histogram): time spent waiting
//
// Request Metrics (pkg/client):
//   - sincera_requests_total{kind, status} (Counter): requests by identifier kind and HTTP status
//   - sincera_request_duration_seconds{kind} (Histogram): request duration
//   - sincera_errors_total{class} (Counter): errors by class
//
// Retry Metrics (pkg/client):
//   - sincera_retries_total{error_class} (Counter): retry attempts
//   - sincera_retry_backoff_seconds{error_class} (Histogram): backoff durations
//   - sincera_retry_exhausted_total{error_class} (Counter): lookups that ran out of retries
//
// Processor Metrics (internal/processor):
//   - sincera_rows_total{status} (Counter): rows by outcome (success, failed, skipped)
//
// Memo Metrics (pkg/cache):
//   - sincera_memo_hits_total (Counter): rows answered from an earlier lookup in the same run
//   - sincera_memo_misses_total (Counter): rows that had to go to the API
//   - sincera_memo_entries (Gauge): identifiers held in the memo
//
// Example Prometheus Queries:
//
//   # Failure ratio of the last run
//   sincera_rows_total{status="failed"} / ignoring(status) sum(sincera_rows_total)
//
//   # Time lost to the rate limiter
//   sincera_rate_limit_wait_seconds_sum
