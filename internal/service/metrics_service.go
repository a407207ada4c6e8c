package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation: HTTP histograms
// plus the domain counters the allocation engine emits.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rotationsTotal  *prometheus.CounterVec
	ruleHitsTotal   *prometheus.CounterVec
	promotionsTotal prometheus.Counter
	blocksTotal     prometheus.Counter
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

	rotationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rotations_created_total",
		Help: "Rotations created by resulting status",
	}, []string{"status"})

	ruleHitsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eligibility_rule_hits_total",
		Help: "Eligibility rule evaluations that flagged a request",
	}, []string{"rule"})

	promotionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_promotions_total",
		Help: "Waiting list entries promoted into freed slots",
	})

	blocksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "block_requests_total",
		Help: "Block requests received",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, rotationsTotal, ruleHitsTotal, promotionsTotal, blocksTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		rotationsTotal:  rotationsTotal,
		ruleHitsTotal:   ruleHitsTotal,
		promotionsTotal: promotionsTotal,
		blocksTotal:     blocksTotal,
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

// ObserveHTTPRequest records request latency and volume.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RotationCreated counts a created rotation by its resulting status.
func (m *MetricsService) RotationCreated(status string) {
	if m == nil {
		return
	}
	m.rotationsTotal.WithLabelValues(status).Inc()
}

// RuleHit counts an eligibility rule flagging a request.
func (m *MetricsService) RuleHit(rule string) {
	if m == nil {
		return
	}
	m.ruleHitsTotal.WithLabelValues(rule).Inc()
}

// PromotionRecorded counts one waiting-list promotion.
func (m *MetricsService) PromotionRecorded() {
	if m == nil {
		return
	}
	m.promotionsTotal.Inc()
}

// BlockRequested counts one block request.
func (m *MetricsService) BlockRequested() {
	if m == nil {
		return
	}
	m.blocksTotal.Inc()
}
