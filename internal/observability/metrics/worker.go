package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

// WorkerMetrics covers queued analysis jobs from dequeue to terminal status.
type WorkerMetrics struct {
	registry *prometheus.Registry
	pipeline *PipelineMetrics

	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  prometheus.Gauge
	lag      prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	reg := newRegistry()
	labels := prometheus.Labels{"service": service}
	f := promauto.With(reg)

	return &WorkerMetrics{
		registry: reg,
		pipeline: NewPipelineMetrics(reg, service),
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "jobs_total",
			Help:        "Analysis jobs processed by terminal status.",
			ConstLabels: labels,
		}, []string{"status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "job_duration_seconds",
			Help:        "Wall time spent on one analysis job.",
			ConstLabels: labels,
			Buckets:     []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "worker", Name: "jobs_running",
			Help:        "Analysis jobs currently being processed.",
			ConstLabels: labels,
		}),
		lag: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "queue_lag_seconds",
			Help:        "Time between job submission and the worker picking it up.",
			ConstLabels: labels,
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Pipeline() *PipelineMetrics {
	return m.pipeline
}

// TrackJob marks a job as running. The returned func records its outcome
// and must be called exactly once.
func (m *WorkerMetrics) TrackJob() func(err error) {
	start := time.Now()
	m.running.Inc()
	return func(err error) {
		m.running.Dec()
		status := string(domain.JobCompleted)
		if err != nil {
			status = string(domain.JobFailed)
		}
		m.jobs.WithLabelValues(status).Inc()
		m.duration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

// ObserveQueueLag ignores jobs without a usable enqueue time.
func (m *WorkerMetrics) ObserveQueueLag(enqueuedAt time.Time) {
	if enqueuedAt.IsZero() {
		return
	}
	if lag := time.Since(enqueuedAt); lag >= 0 {
		m.lag.Observe(lag.Seconds())
	}
}
