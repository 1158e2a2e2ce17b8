package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// StatusSuccess labels predictions that produced an output.
	StatusSuccess = "success"
	// StatusError labels predictions rejected or failed before output.
	StatusError = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of prediction requests, partitioned by model type and status.",
		},
		[]string{"model_type", "status"},
	)

	predictionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prediction_duration_seconds",
			Help:    "Prediction serving latency in seconds.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"model_type"},
	)

	auditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of prediction audit rows that failed to persist.",
		},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_loads_total",
			Help: "Total number of model artifact load attempts, partitioned by model type and outcome.",
		},
		[]string{"model_type", "outcome"},
	)
)

// Register attaches all collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		auditWriteFailuresTotal,
		modelLoadsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records one prediction attempt with its latency and
// final status label.
func ObservePrediction(modelType string, duration time.Duration, status string) {
	label := status
	if label != StatusError {
		label = StatusSuccess
	}
	predictionsTotal.WithLabelValues(modelType, label).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.WithLabelValues(modelType).Observe(duration.Seconds())
}

// RecordAuditWriteFailure counts a dropped or failed audit write.
func RecordAuditWriteFailure() {
	auditWriteFailuresTotal.Inc()
}

// RecordModelLoad counts one artifact load attempt per outcome.
func RecordModelLoad(modelType, outcome string) {
	modelLoadsTotal.WithLabelValues(modelType, outcome).Inc()
}
