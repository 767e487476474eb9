package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/fleet-ops-api/internal/dto"
	"github.com/noah-isme/fleet-ops-api/internal/models"
)

// MetricsService owns the Prometheus registry and the domain counters. All
// methods are safe on a nil receiver.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	incidentsCreated  *prometheus.CounterVec
	incidentsResolved *prometheus.CounterVec
	expiringDocuments prometheus.Gauge
	lockContention    prometheus.Counter

	requestCount         uint64
	requestDurationTotal uint64
	createdCount         uint64
	resolvedCount        uint64
	contendedCount       uint64
	expiringCount        int64
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

	incidentsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "incidents_created_total",
		Help: "Incident rows created, after channel fan-out",
	}, []string{"equipment_type"})

	incidentsResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "incidents_resolved_total",
		Help: "Incidents transitioned to resolved for the first time",
	}, []string{"equipment_type"})

	expiringDocuments := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "expiring_documents",
		Help: "Documents inside their alert window at the last scan",
	})

	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equipment_lock_contention_total",
		Help: "Incident writes rejected because a channel lock was held",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, incidentsCreated, incidentsResolved, expiringDocuments, lockContention, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		incidentsCreated:  incidentsCreated,
		incidentsResolved: incidentsResolved,
		expiringDocuments: expiringDocuments,
		lockContention:    lockContention,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// IncidentsCreated counts n new incident rows.
func (m *MetricsService) IncidentsCreated(equipment models.EquipmentType, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.incidentsCreated.WithLabelValues(string(equipment)).Add(float64(n))
	atomic.AddUint64(&m.createdCount, uint64(n))
}

// IncidentResolved counts a first-time resolution.
func (m *MetricsService) IncidentResolved(equipment models.EquipmentType) {
	if m == nil {
		return
	}
	m.incidentsResolved.WithLabelValues(string(equipment)).Inc()
	atomic.AddUint64(&m.resolvedCount, 1)
}

// LockContended counts a rejected write.
func (m *MetricsService) LockContended() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
	atomic.AddUint64(&m.contendedCount, 1)
}

// ExpiringDocuments stores the size of the latest expiry scan.
func (m *MetricsService) ExpiringDocuments(n int) {
	if m == nil {
		return
	}
	m.expiringDocuments.Set(float64(n))
	atomic.StoreInt64(&m.expiringCount, int64(n))
}

// Snapshot returns aggregated metrics for the JSON endpoint.
func (m *MetricsService) Snapshot() dto.SystemMetrics {
	if m == nil {
		return dto.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return dto.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		IncidentsCreated:         atomic.LoadUint64(&m.createdCount),
		IncidentsResolved:        atomic.LoadUint64(&m.resolvedCount),
		LockContention:           atomic.LoadUint64(&m.contendedCount),
		ExpiringDocuments:        int(atomic.LoadInt64(&m.expiringCount)),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
