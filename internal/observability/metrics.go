package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheLookups counts cache-aside lookups by resource and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cache_lookups_total",
		Help: "Total cache lookups by resource and result",
	}, []string{"resource", "result"})

	// LiveSearchConnections is the gauge of open live search sockets.
	LiveSearchConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_live_search_connections",
		Help: "Number of open live search WebSocket connections",
	})

	// LiveSearchQueries counts live search queries by outcome (served, superseded, failed).
	LiveSearchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_live_search_queries_total",
		Help: "Total live search queries by outcome",
	}, []string{"outcome"})

	// AuthEvents counts authentication events by type and outcome.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_auth_events_total",
		Help: "Total authentication events by type and outcome",
	}, []string{"event", "outcome"})

	// MediaUploadBytes records the size of stored media after re-encoding.
	MediaUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkwell_media_upload_bytes",
		Help:    "Size of stored media files in bytes",
		Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
	})

	// JobRuns counts scheduled job executions by job and outcome.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_job_runs_total",
		Help: "Total scheduled job runs by job and outcome",
	}, []string{"job", "outcome"})
)

// DatabaseMetrics records query latency for a repository.
type DatabaseMetrics struct {
	table string
}

// NewDatabaseMetrics returns a DatabaseMetrics labelled with table.
func NewDatabaseMetrics(table string) *DatabaseMetrics {
	return &DatabaseMetrics{table: table}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, m.table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, start)
	}
}

// Outcome maps an error to a metric label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
