package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each instance owns its
// registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Requests by method, route template and status code
	Requests *prometheus.CounterVec

	// Latency by method and route template
	Latency *prometheus.HistogramVec

	// Status codes >= 400 rendered as an OperationOutcome, by status
	Outcomes *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condition_server_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "condition_server_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condition_server_error_responses_total",
			Help: "Error responses by status code",
		}, []string{"status"}),
	}
}

// Middleware records every request against its route template (c.Path()),
// never the raw URL, so resource ids do not become label values.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.Requests.WithLabelValues(method, route, code).Inc()
	m.Latency.WithLabelValues(method, route).Observe(d.Seconds())
	if status >= 400 {
		m.Outcomes.WithLabelValues(code).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
