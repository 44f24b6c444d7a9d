// Package metrics provides Prometheus instrumentation for the Subgate platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subgate",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "subgate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SubscriptionTransitionsTotal counts state machine transitions by from/to status.
	SubscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subgate",
			Name:      "subscription_transitions_total",
			Help:      "Total subscription status transitions by from and to status.",
		},
		[]string{"from", "to"},
	)

	// LicensesIssuedTotal counts issued licenses by type.
	LicensesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subgate",
			Name:      "licenses_issued_total",
			Help:      "Total licenses issued by type (trial/paid).",
		},
		[]string{"type"},
	)

	// LicenseValidationsTotal counts license validations by result.
	LicenseValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subgate",
			Name:      "license_validations_total",
			Help:      "Total license validations by result (valid/expired/not_found).",
		},
		[]string{"result"},
	)

	// WebhookEventsTotal counts inbound payment-provider webhook events by provider and outcome.
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subgate",
			Name:      "webhook_events_total",
			Help:      "Total inbound payment webhook events by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// SweepRunsTotal counts trial sweep runs.
	SweepRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subgate",
		Name:      "sweep_runs_total",
		Help:      "Total trial transition sweep runs.",
	})

	// SweepOutcomesTotal counts per-subscription sweep outcomes.
	SweepOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subgate",
			Name:      "sweep_outcomes_total",
			Help:      "Total per-subscription sweep outcomes (processed/skipped/failed).",
		},
		[]string{"outcome"},
	)

	// PaymentsRecordedTotal counts payment ledger rows by status.
	PaymentsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subgate",
			Name:      "payments_recorded_total",
			Help:      "Total subscription payment rows recorded by status.",
		},
		[]string{"status"},
	)

	// NotifyDeliveriesTotal counts outbound lifecycle webhook deliveries by result.
	NotifyDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subgate",
			Name:      "notify_deliveries_total",
			Help:      "Total outbound lifecycle webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "subgate",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subgate", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subgate", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subgate", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subgate", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SubscriptionTransitionsTotal,
		LicensesIssuedTotal,
		LicenseValidationsTotal,
		WebhookEventsTotal,
		SweepRunsTotal,
		SweepOutcomesTotal,
		PaymentsRecordedTotal,
		NotifyDeliveriesTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
