package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "dashboard_"

	resultSuccess = "success"
	resultError   = "error"
	resultStale   = "stale"
)

var (
	registerOnce sync.Once

	fetchRequests *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec

	pollResults      *prometheus.CounterVec
	pollTicksSkipped *prometheus.CounterVec
	snapshotRecords  *prometheus.GaugeVec
	subscriberDrops  *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	mirrorPublishes *prometheus.CounterVec
)

// Init registers dashboard metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		fetchRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_requests_total",
				Help: "Total monitoring API requests by endpoint and result",
			},
			[]string{"endpoint", "result"},
		)
		fetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "source_latency_seconds",
				Help:    "Monitoring API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "result"},
		)

		pollResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_results_total",
				Help: "Total poll results by table and outcome",
			},
			[]string{"table", "result"},
		)
		pollTicksSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_ticks_skipped_total",
				Help: "Timer ticks skipped because a fetch was in flight",
			},
			[]string{"table"},
		)
		snapshotRecords = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "snapshot_records",
				Help: "Records in the latest published snapshot",
			},
			[]string{"table"},
		)
		subscriberDrops = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "subscriber_drops_total",
				Help: "Snapshots dropped for slow subscribers",
			},
			[]string{"table"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total table exports by table, format and result",
			},
			[]string{"table", "format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Table export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table", "format"},
		)

		mirrorPublishes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mirror_publishes_total",
				Help: "Snapshot mirror publishes by subject and result",
			},
			[]string{"subject", "result"},
		)

		prometheus.MustRegister(
			fetchRequests,
			fetchLatency,
			pollResults,
			pollTicksSkipped,
			snapshotRecords,
			subscriberDrops,
			exportTotal,
			exportLatency,
			mirrorPublishes,
		)
	})
}

// ObserveFetch records a monitoring API request.
func ObserveFetch(endpoint, result string, duration time.Duration) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if fetchRequests != nil {
		fetchRequests.WithLabelValues(endpoint, result).Inc()
	}
	if fetchLatency != nil {
		fetchLatency.WithLabelValues(endpoint, result).Observe(duration.Seconds())
	}
}

// IncPollResult counts a finished poll: success, error or stale.
func IncPollResult(table, result string) {
	if table == "" {
		table = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if pollResults != nil {
		pollResults.WithLabelValues(table, result).Inc()
	}
}

// IncTickSkipped counts a timer tick that found a fetch in flight.
func IncTickSkipped(table string) {
	if table == "" {
		table = "unknown"
	}
	if pollTicksSkipped != nil {
		pollTicksSkipped.WithLabelValues(table).Inc()
	}
}

// SetSnapshotRecords sets the size of the latest published snapshot.
func SetSnapshotRecords(table string, count int) {
	if table == "" {
		table = "unknown"
	}
	if snapshotRecords != nil {
		snapshotRecords.WithLabelValues(table).Set(float64(count))
	}
}

// IncSubscriberDrop counts a snapshot not delivered to a full subscriber channel.
func IncSubscriberDrop(table string) {
	if table == "" {
		table = "unknown"
	}
	if subscriberDrops != nil {
		subscriberDrops.WithLabelValues(table).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(table, format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(table, format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(table, format).Observe(duration.Seconds())
	}
}

// IncMirrorPublish counts a snapshot mirrored to the message bus.
func IncMirrorPublish(subject, result string) {
	if result == "" {
		result = resultSuccess
	}
	if mirrorPublishes != nil {
		mirrorPublishes.WithLabelValues(subject, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultStale   = resultStale
)
