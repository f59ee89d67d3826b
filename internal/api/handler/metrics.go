package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loanproof_ledger_appends_total",
		Help: "Total ledger entries appended.",
	})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanproof_verifications_total",
		Help: "Total chain verification passes by result.",
	}, []string{"result"})

	tamperAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanproof_tamper_alerts_total",
		Help: "Total tamper alert dispatch attempts by outcome.",
	}, []string{"outcome"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanproof_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loanproof_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAppend records a successful ledger append.
func RecordAppend() {
	ledgerAppendsTotal.Inc()
}

// RecordVerification records a chain verification pass.
func RecordVerification(valid bool) {
	if valid {
		verificationsTotal.WithLabelValues("valid").Inc()
	} else {
		verificationsTotal.WithLabelValues("invalid").Inc()
	}
}

// RecordAlertDispatch records a tamper alert dispatch outcome.
func RecordAlertDispatch(sent bool) {
	if sent {
		tamperAlertsTotal.WithLabelValues("sent").Inc()
	} else {
		tamperAlertsTotal.WithLabelValues("failed").Inc()
	}
}
