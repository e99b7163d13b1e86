// Package metrics documents the Prometheus metrics exposed by the crates.io
// client. Metrics are defined in their owning packages (transport,
// ratelimit) via promauto to keep registration next to the code that drives
// them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer all client metrics attach to.
var Registry = prometheus.DefaultRegisterer

// Metrics reference
//
// Rate limit metrics (pkg/ratelimit):
//   - crates_ratelimit_admissions_total (Counter): requests admitted
//   - crates_ratelimit_in_flight (Gauge): admissions currently held (0 or 1)
//   - crates_ratelimit_wait_seconds (Histogram): time spent waiting for admission
//
// Request metrics (pkg/transport):
//   - crates_requests_total{endpoint, status} (Counter): round trips by
//     endpoint and HTTP status ("network_error"/"read_error" for failures
//     that never produced a status)
//   - crates_request_duration_seconds{endpoint} (Histogram): round trip duration
//   - crates_transport_errors_total (Counter): connection/DNS/TLS/timeout failures
//
// Example queries:
//
//	# Request error rate
//	rate(crates_transport_errors_total[5m])
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(crates_request_duration_seconds_bucket[5m]))
//
//	# Admission wait pressure (crawler pacing)
//	histogram_quantile(0.95, rate(crates_ratelimit_wait_seconds_bucket[5m]))
