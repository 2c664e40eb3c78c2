package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	recordsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fp_records_created_total",
			Help: "Total number of family planning service records created",
		},
		[]string{"client_type", "method"},
	)

	followupTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fp_followup_transitions_total",
			Help: "Total number of follow-up status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	reportsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fp_reports_generated_total",
			Help: "Total number of cohort reports generated",
		},
	)

	reportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fp_report_duration_seconds",
			Help:    "Cohort report generation duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	reportCellFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fp_report_cell_failures_total",
			Help: "Total number of report cells that failed to aggregate",
		},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware creates HTTP metrics middleware.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			// Route path keeps parameterized segments to avoid cardinality explosion
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			status := c.Response().Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// --- Business metric helpers ---

// RecordServiceRecordCreated records a family planning record creation.
func RecordServiceRecordCreated(clientType, method string) {
	recordsCreated.WithLabelValues(clientType, method).Inc()
}

// RecordFollowUpTransition records a follow-up status transition.
func RecordFollowUpTransition(fromStatus, toStatus string) {
	followupTransitions.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordReportGenerated records a completed cohort report.
func RecordReportGenerated(duration time.Duration) {
	reportsGenerated.Inc()
	reportDuration.Observe(duration.Seconds())
}

// RecordReportCellFailure records a report cell that failed to aggregate.
func RecordReportCellFailure() {
	reportCellFailures.Inc()
}

// RecordDBConnections records active database connections.
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}
