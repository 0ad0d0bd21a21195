// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RecordsFetched    *prometheus.CounterVec
	FetchErrors       *prometheus.CounterVec
	AdapterDegraded   *prometheus.GaugeVec
	QueueDepth        prometheus.Gauge
	FetchLatency      *prometheus.HistogramVec

	// Resolution metrics
	ObservationsAppended *prometheus.CounterVec
	DuplicatesDropped    *prometheus.CounterVec
	EntitiesRegistered   *prometheus.CounterVec
	CrossLinksRecorded   prometheus.Counter

	// Classification metrics
	VerdictsProduced     *prometheus.CounterVec
	VerdictsSuppressed   prometheus.Counter
	StrategyFailures     *prometheus.CounterVec
	ClassifyLatency      *prometheus.HistogramVec

	// Delivery metrics
	NotificationsSent   *prometheus.CounterVec
	NotificationErrors  *prometheus.CounterVec
	VerdictsBuffered    prometheus.Gauge
	VerdictFlushRetries prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPoll *prometheus.GaugeVec
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "scamwatch"
	}

	return &Metrics{
		RecordsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_fetched_total",
			Help:      "Total number of raw records fetched by source",
		}, []string{"source"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "fetch_errors_total",
			Help:      "Total number of fetch failures by source and error kind",
		}, []string{"source", "kind"}),
		AdapterDegraded: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "adapter_degraded",
			Help:      "1 when the adapter is in degraded mode, 0 otherwise",
		}, []string{"source"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Current number of observations waiting in the ingest queue",
		}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "fetch_duration_seconds",
			Help:      "Fetch call latency by source",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		ObservationsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "observations_appended_total",
			Help:      "Total number of observations appended to entities by source",
		}, []string{"source"}),
		DuplicatesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of observations dropped as duplicates by source",
		}, []string{"source"}),
		EntitiesRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "entities_registered_total",
			Help:      "Total number of new entities registered by kind",
		}, []string{"kind"}),
		CrossLinksRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "cross_links_recorded_total",
			Help:      "Total number of contract/account cross-links recorded",
		}),

		VerdictsProduced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "verdicts_produced_total",
			Help:      "Total number of verdicts recorded by category",
		}, []string{"category"}),
		VerdictsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "verdicts_suppressed_total",
			Help:      "Total number of verdicts suppressed by hysteresis",
		}),
		StrategyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "strategy_failures_total",
			Help:      "Total number of strategy errors by strategy name",
		}, []string{"strategy"}),
		ClassifyLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "duration_seconds",
			Help:      "Classification latency by entity kind",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications sent by channel",
		}, []string{"channel"}),
		NotificationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notification_errors_total",
			Help:      "Total number of notification delivery failures by channel",
		}, []string{"channel"}),
		VerdictsBuffered: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "verdicts_buffered",
			Help:      "Current number of verdicts waiting in the retry buffer",
		}),
		VerdictFlushRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "verdict_flush_retries_total",
			Help:      "Total number of buffered verdict flush attempts",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency by backend and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors by backend and operation",
		}, []string{"database", "operation"}),

		LastSuccessfulPoll: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of the last successful poll by source",
		}, []string{"source"}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetch records a successful fetch of n records.
func RecordFetch(source string, n int, seconds float64) {
	DefaultMetrics.RecordsFetched.WithLabelValues(source).Add(float64(n))
	DefaultMetrics.FetchLatency.WithLabelValues(source).Observe(seconds)
	DefaultMetrics.LastSuccessfulPoll.WithLabelValues(source).SetToCurrentTime()
}

// RecordFetchError records a classified fetch failure.
func RecordFetchError(source, kind string) {
	DefaultMetrics.FetchErrors.WithLabelValues(source, kind).Inc()
}

// SetAdapterDegraded flips the degraded gauge for a source.
func SetAdapterDegraded(source string, degraded bool) {
	v := 0.0
	if degraded {
		v = 1.0
	}
	DefaultMetrics.AdapterDegraded.WithLabelValues(source).Set(v)
}

// UpdateQueueDepth updates the ingest queue depth gauge.
func UpdateQueueDepth(n int) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// RecordAppend records a resolved observation append.
func RecordAppend(source string) {
	DefaultMetrics.ObservationsAppended.WithLabelValues(source).Inc()
}

// RecordDuplicate records a dropped duplicate observation.
func RecordDuplicate(source string) {
	DefaultMetrics.DuplicatesDropped.WithLabelValues(source).Inc()
}

// RecordEntityRegistered records a newly seen entity.
func RecordEntityRegistered(kind string) {
	DefaultMetrics.EntitiesRegistered.WithLabelValues(kind).Inc()
}

// RecordCrossLink records a recorded cross-link.
func RecordCrossLink() {
	DefaultMetrics.CrossLinksRecorded.Inc()
}

// RecordVerdict records a recorded verdict.
func RecordVerdict(category string) {
	DefaultMetrics.VerdictsProduced.WithLabelValues(category).Inc()
}

// RecordVerdictSuppressed records a verdict suppressed by hysteresis.
func RecordVerdictSuppressed() {
	DefaultMetrics.VerdictsSuppressed.Inc()
}

// RecordStrategyFailure records a strategy error.
func RecordStrategyFailure(strategy string) {
	DefaultMetrics.StrategyFailures.WithLabelValues(strategy).Inc()
}

// RecordNotification records a notification outcome.
func RecordNotification(channel string, err error) {
	if err != nil {
		DefaultMetrics.NotificationErrors.WithLabelValues(channel).Inc()
		return
	}
	DefaultMetrics.NotificationsSent.WithLabelValues(channel).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
