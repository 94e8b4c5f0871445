package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	computeDuration prometheus.Observer
	computeTotal    *prometheus.CounterVec
	approvalTotal   *prometheus.CounterVec
	periodsLocked   prometheus.Counter
	payslipsIssued  prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the engine's Prometheus collectors.
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

	computeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payroll_compute_duration_seconds",
		Help:    "Duration of single-record payroll computations",
		Buckets: prometheus.DefBuckets,
	})

	computeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_computations_total",
		Help: "Total payroll record computations by result",
	}, []string{"result"})

	approvalTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_decisions_total",
		Help: "Total approval decisions by kind and decision",
	}, []string{"kind", "decision"})

	periodsLocked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payroll_periods_locked_total",
		Help: "Total payroll periods locked",
	})

	payslipsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payslips_issued_total",
		Help: "Total payslips materialized",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, computeDuration, computeTotal,
		approvalTotal, periodsLocked, payslipsIssued, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		computeDuration: computeDuration,
		computeTotal:    computeTotal,
		approvalTotal:   approvalTotal,
		periodsLocked:   periodsLocked,
		payslipsIssued:  payslipsIssued,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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

// ObserveComputation records one record computation.
func (m *MetricsService) ObserveComputation(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.computeDuration.Observe(duration.Seconds())
	result := "success"
	if !success {
		result = "failure"
	}
	m.computeTotal.WithLabelValues(result).Inc()
}

// ObserveApprovalDecision records one approval or rejection.
func (m *MetricsService) ObserveApprovalDecision(kind, decision string) {
	if m == nil {
		return
	}
	m.approvalTotal.WithLabelValues(kind, decision).Inc()
}

// ObservePeriodLocked counts a successful period lock.
func (m *MetricsService) ObservePeriodLocked() {
	if m == nil {
		return
	}
	m.periodsLocked.Inc()
}

// ObservePayslips counts materialized payslips.
func (m *MetricsService) ObservePayslips(count int) {
	if m == nil {
		return
	}
	m.payslipsIssued.Add(float64(count))
}

// RecordCacheOperation counts a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
