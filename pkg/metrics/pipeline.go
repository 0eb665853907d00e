package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records timings and outcomes for the reconciliation
// pipeline and its background workers.
type PipelineMetrics struct {
	duration        *prometheus.HistogramVec
	success         *prometheus.CounterVec
	failure         *prometheus.CounterVec
	priceResolution *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_duration_seconds",
		Help:    "Duration of pipeline operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_success",
		Help: "Successful pipeline operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_failure",
		Help: "Failed pipeline operations.",
	}, []string{"operation"})
	priceResolution := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_resolution_total",
		Help: "Price resolution attempts by result.",
	}, []string{"result"})
	reg.MustRegister(duration, success, failure, priceResolution)
	return &PipelineMetrics{
		duration:        duration,
		success:         success,
		failure:         failure,
		priceResolution: priceResolution,
	}
}

// ObserveDuration records the duration for the named operation.
func (p *PipelineMetrics) ObserveDuration(operation string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (p *PipelineMetrics) IncSuccess(operation string) {
	if p == nil || p.success == nil {
		return
	}
	p.success.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (p *PipelineMetrics) IncFailure(operation string) {
	if p == nil || p.failure == nil {
		return
	}
	p.failure.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncPriceResolution counts one price resolution attempt.
func (p *PipelineMetrics) IncPriceResolution(resolved bool) {
	if p == nil || p.priceResolution == nil {
		return
	}
	result := "resolved"
	if !resolved {
		result = "unresolved"
	}
	p.priceResolution.WithLabelValues(result).Inc()
}

func normalizeLabel(operation string) string {
	if operation == "" {
		return "unknown"
	}
	return operation
}
