package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

// PipelineMetrics records per-stage outcomes of the analysis pipeline.
type PipelineMetrics struct {
	stages   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewPipelineMetrics(registerer prometheus.Registerer, service string) *PipelineMetrics {
	labels := prometheus.Labels{"service": service}
	f := promauto.With(registerer)
	return &PipelineMetrics{
		stages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "stage_total",
			Help:        "Pipeline stage executions by outcome.",
			ConstLabels: labels,
		}, []string{"stage", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "stage_duration_seconds",
			Help:        "Pipeline stage duration in seconds.",
			ConstLabels: labels,
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
	}
}

func (m *PipelineMetrics) ObserveStage(stage domain.PipelineStage, status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.stages.WithLabelValues(string(stage), status).Inc()
	m.duration.WithLabelValues(string(stage)).Observe(duration.Seconds())
}
