package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// lifecycle sweep.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	transitionTotal   *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
	registrationTotal *prometheus.CounterVec
	checkinTotal      *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_transitions_total",
		Help: "Lifecycle transitions applied by the periodic sweep",
	}, []string{"transition"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "activity_sweep_duration_seconds",
		Help:    "Duration of one lifecycle sweep",
		Buckets: prometheus.DefBuckets,
	})

	registrationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrations_total",
		Help: "Registration attempts by outcome",
	}, []string{"outcome"})

	checkinTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkins_total",
		Help: "Check-in attempts by method and outcome",
	}, []string{"method", "outcome"})

	registry.MustRegister(requestDuration, requestTotal, transitionTotal, sweepDuration, registrationTotal, checkinTotal)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		transitionTotal:   transitionTotal,
		sweepDuration:     sweepDuration,
		registrationTotal: registrationTotal,
		checkinTotal:      checkinTotal,
	}
}

// Handler exposes the scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveRequest records one HTTP request.
func (m *MetricsService) ObserveRequest(method, path, status string, duration time.Duration) {
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveSweep records the outcome of one lifecycle sweep.
func (m *MetricsService) ObserveSweep(started, completed int64, duration time.Duration) {
	if started > 0 {
		m.transitionTotal.WithLabelValues("upcoming_to_ongoing").Add(float64(started))
	}
	if completed > 0 {
		m.transitionTotal.WithLabelValues("ongoing_to_completed").Add(float64(completed))
	}
	m.sweepDuration.Observe(duration.Seconds())
}

// ObserveRegistration counts a registration attempt.
func (m *MetricsService) ObserveRegistration(outcome string) {
	m.registrationTotal.WithLabelValues(outcome).Inc()
}

// ObserveCheckin counts a check-in attempt.
func (m *MetricsService) ObserveCheckin(method, outcome string) {
	m.checkinTotal.WithLabelValues(method, outcome).Inc()
}
