// Package metrics provides Prometheus observability for gpload. It
// exposes counters and histograms for the load pipeline: rows encoded,
// bytes staged, partition outcomes, COPY transfer latency and staging
// cleanup retries.
//
// Metrics are registered once at package init through promauto and are
// safe for concurrent use from parallel partition uploads.
//
// Example:
//
//	timer := metrics.NewTimer()
//	n, err := conn.CopyFrom(ctx, sql, file)
//	metrics.CopyDuration.Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsEncoded counts rows written to local spool files, by target table.
	RowsEncoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpload_rows_encoded_total",
			Help: "Total number of rows encoded into the COPY wire format",
		},
		[]string{"table"},
	)

	// BytesStaged counts bytes spooled to local files before transfer.
	BytesStaged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpload_bytes_staged_total",
			Help: "Total number of bytes spooled for COPY transfer",
		},
		[]string{"table"},
	)

	// PartitionsUploaded counts finished partition uploads by outcome.
	// Status is one of success, failure, timeout.
	PartitionsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpload_partitions_uploaded_total",
			Help: "Total number of partition uploads by outcome",
		},
		[]string{"table", "status"},
	)

	// CopyDuration tracks the wall-clock duration of one partition's COPY
	// transfer. Buckets cover fast local loads up to multi-minute bulk
	// transfers.
	CopyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gpload_copy_duration_seconds",
			Help:    "COPY transfer duration in seconds",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
		},
	)

	// CleanupRetries counts staging-table drop attempts that failed and
	// were retried.
	CleanupRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gpload_cleanup_retries_total",
			Help: "Total number of failed staging-table drop attempts",
		},
	)

	// JobsCompleted counts finished load jobs by mode and outcome.
	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpload_jobs_completed_total",
			Help: "Total number of load jobs by mode and outcome",
		},
		[]string{"mode", "status"},
	)
)

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
}

// NewTimer starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer was created.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
