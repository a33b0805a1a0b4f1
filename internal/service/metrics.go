package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// inferenceTotal counts inference calls by operation and outcome
	inferenceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellspring_inference_total",
		Help: "Total inference operations by result",
	}, []string{"op", "result"})

	inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wellspring_inference_duration_seconds",
		Help:    "Inference operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~400ms
	}, []string{"op"})

	modelReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellspring_model_reloads_total",
		Help: "Model reload attempts by result",
	}, []string{"result"})

	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellspring_assessments_total",
		Help: "Assessments produced by kind and risk level",
	}, []string{"kind", "risk_level"})

	assessmentsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wellspring_assessments_pruned_total",
		Help: "Assessments deleted by the retention expirer",
	})
)

// observe records the duration and outcome of one inference operation.
func observe(op string, start time.Time, err error) {
	inferenceDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	inferenceTotal.WithLabelValues(op, result).Inc()
}
