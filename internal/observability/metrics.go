// Package observability owns the Prometheus registry and the service's metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics contains the custom Prometheus metrics for imagevault.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AuthEvents      *prometheus.CounterVec
	AssetOperations *prometheus.CounterVec
	UploadBytes     prometheus.Histogram
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewMetrics creates a private registry with Go and process collectors and
// registers the service metrics on it.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagevault_auth_events_total",
				Help: "Total number of authentication events by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		AssetOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagevault_asset_operations_total",
				Help: "Total number of asset operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		UploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imagevault_asset_upload_bytes",
			Help:    "Size of accepted image uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagevault_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imagevault_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	registry.MustRegister(m.AuthEvents, m.AssetOperations, m.UploadBytes, m.HTTPRequests, m.HTTPDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordAuth counts one authentication event.
func (m *Metrics) RecordAuth(event string, err error) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, outcome(err)).Inc()
}

// RecordAsset counts one asset operation.
func (m *Metrics) RecordAsset(operation string, err error) {
	if m == nil {
		return
	}
	m.AssetOperations.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveUpload records the size of an accepted payload.
func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.UploadBytes.Observe(float64(size))
}

// Middleware records request counts and latency keyed by the matched route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
