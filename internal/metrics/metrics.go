package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the ledger's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "currency_ledger",
			Subsystem: "ledger",
			Name:      "mutations_total",
			Help:      "Balance mutations by action and outcome (ok, rejected, error).",
		},
		[]string{"action", "outcome"},
	)

	auditFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "currency_ledger",
			Subsystem: "audit",
			Name:      "append_failures_total",
			Help:      "Transaction records that could not be written after commit.",
		},
	)

	auditQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "currency_ledger",
			Subsystem: "audit",
			Name:      "queued_total",
			Help:      "Transaction records parked in the replay queue after a failed insert.",
		},
	)

	auditReplayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "currency_ledger",
			Subsystem: "audit",
			Name:      "replayed_total",
			Help:      "Queued transaction records written by the replay job.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "currency_ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "currency_ledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		mutations,
		auditFailures,
		auditQueued,
		auditReplayed,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// ObserveMutation counts one mutation attempt.
func ObserveMutation(action, outcome string) {
	mutations.WithLabelValues(action, outcome).Inc()
}

// ObserveAuditFailure counts a record that missed its first write.
func ObserveAuditFailure() {
	auditFailures.Inc()
}

// ObserveAuditQueued counts a record parked for replay.
func ObserveAuditQueued() {
	auditQueued.Inc()
}

// ObserveAuditReplay counts a record written by the replay job.
func ObserveAuditReplay() {
	auditReplayed.Inc()
}

// LedgerObserver reports ledger engine events to the package collectors.
type LedgerObserver struct{}

func (LedgerObserver) ObserveMutation(action, outcome string) { ObserveMutation(action, outcome) }

func (LedgerObserver) ObserveAuditFailure() { ObserveAuditFailure() }

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
