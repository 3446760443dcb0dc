package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the grievance pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	grievancesCreated prometheus.Counter
	transitionsTotal  *prometheus.CounterVec
	dispatchTotal     *prometheus.CounterVec
	slaWarningsTotal  prometheus.Counter
	escalationsTotal  prometheus.Counter
	sweepDuration     prometheus.Histogram
}

// NewMetricsService registers core Prometheus collectors.
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

	grievancesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grievances_created_total",
		Help: "Total grievances submitted",
	})

	transitionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievance_transitions_total",
		Help: "Status transitions by from/to pair and outcome",
	}, []string{"from", "to", "outcome"})

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notification deliveries by channel and result",
	}, []string{"channel", "result"})

	slaWarningsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sla_warnings_sent_total",
		Help: "One-shot SLA warnings sent by the sweeper",
	})

	escalationsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grievance_escalations_total",
		Help: "Grievances escalated manually or by the sweeper",
	})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sla_sweep_duration_seconds",
		Help:    "Duration of one SLA sweeper pass",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, grievancesCreated, transitionsTotal,
		dispatchTotal, slaWarningsTotal, escalationsTotal, sweepDuration, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		grievancesCreated: grievancesCreated,
		transitionsTotal:  transitionsTotal,
		dispatchTotal:     dispatchTotal,
		slaWarningsTotal:  slaWarningsTotal,
		escalationsTotal:  escalationsTotal,
		sweepDuration:     sweepDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// GrievanceCreated counts a submission.
func (m *MetricsService) GrievanceCreated() {
	if m == nil {
		return
	}
	m.grievancesCreated.Inc()
}

// TransitionAttempt counts one transition by outcome (applied, rejected,
// conflict).
func (m *MetricsService) TransitionAttempt(from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, outcome).Inc()
}

// NotificationDispatched counts one channel attempt.
func (m *MetricsService) NotificationDispatched(channel string, failed bool) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "failed"
	}
	m.dispatchTotal.WithLabelValues(channel, result).Inc()
}

// SLAWarningSent counts a sweeper warning.
func (m *MetricsService) SLAWarningSent() {
	if m == nil {
		return
	}
	m.slaWarningsTotal.Inc()
}

// Escalated counts an escalation.
func (m *MetricsService) Escalated() {
	if m == nil {
		return
	}
	m.escalationsTotal.Inc()
}

// ObserveSweep records the duration of one sweeper pass.
func (m *MetricsService) ObserveSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}
