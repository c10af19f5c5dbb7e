// Package metrics provides Prometheus instrumentation for the engine.
package metrics

import (
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
			Namespace: "sentinel",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LoginsTotal counts login attempts by outcome (success, failed, blocked).
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "logins_total",
			Help:      "Total login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// TransfersTotal counts transfer attempts by terminal status
	// (completed, flagged, blocked, step_up_pending, rejected).
	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "transfers_total",
			Help:      "Total transfer attempts by terminal status.",
		},
		[]string{"status"},
	)

	// GateDenialsTotal counts control gate denials by control category.
	GateDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "gate_denials_total",
			Help:      "Total control gate denials by control category.",
		},
		[]string{"control"},
	)

	// AlertsTotal counts fraud alerts raised by severity.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "alerts_total",
			Help:      "Total fraud alerts raised by severity.",
		},
		[]string{"severity"},
	)

	// ScenarioRunsTotal counts attack scenario runs by result
	// (completed, failed, stopped).
	ScenarioRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "scenario_runs_total",
			Help:      "Total attack scenario runs by result.",
		},
		[]string{"result"},
	)

	// RiskScore observes rule-based risk scores of scored transactions.
	RiskScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentinel",
		Name:      "risk_score",
		Help:      "Distribution of rule-based risk scores.",
		Buckets:   []float64{0, 10, 20, 30, 40, 55, 70, 85, 100},
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

// Register registers all metrics with the default registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LoginsTotal,
		TransfersTotal,
		GateDenialsTotal,
		AlertsTotal,
		ScenarioRunsTotal,
		RiskScore,
		ActiveWebSocketClients,
		GoroutineCount,
	)
}

// Handler returns the /metrics HTTP handler, refreshing runtime gauges
// on each scrape.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		GoroutineCount.Set(float64(runtime.NumGoroutine()))
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func itoa(n int) string {
	// Three-digit HTTP statuses only; avoids strconv on the hot path.
	return string([]byte{byte('0' + n/100), byte('0' + n/10%10), byte('0' + n%10)})
}
