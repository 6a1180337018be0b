// Package metrics provides Prometheus metrics collection for the placement
// predictor. It defines the inference, artifact and HTTP metrics exposed via
// the /metrics endpoint.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Inference metrics
	PredictionsTotal      *prometheus.CounterVec // Predictions served, by label
	PredictionFailures    *prometheus.CounterVec // Failed predictions, by reason
	PredictionLatency     prometheus.Histogram   // End-to-end predict latency
	PredictionProbability prometheus.Histogram   // Distribution of returned probabilities
	ProbabilityFallback   prometheus.Counter     // Predictions answered with the 0.0 fallback
	DefaultedFeatures     *prometheus.CounterVec // Fields replaced by 0.0, by feature and reason

	// Artifact metrics
	ArtifactLoadDuration prometheus.Histogram   // Time to load and decode a bundle
	ArtifactLoadFailures *prometheus.CounterVec // Failed bundle loads, by reason
	ModelAge             prometheus.Gauge       // Age of the loaded bundle in seconds

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // Requests handled, by handler and status code
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_predictions_total",
			Help: "Total number of placement predictions served",
		}, []string{"label"}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_prediction_failures_total",
			Help: "Total number of failed placement predictions",
		}, []string{"reason"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "placement_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end, including first load)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "placement_prediction_probability",
			Help:    "Distribution of returned placement probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ProbabilityFallback: factory.NewCounter(prometheus.CounterOpts{
			Name: "placement_probability_fallback_total",
			Help: "Total number of predictions whose classifier exposes no probabilities",
		}),
		DefaultedFeatures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_defaulted_features_total",
			Help: "Total number of input fields replaced by the default value",
		}, []string{"feature", "reason"}),
		ArtifactLoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "placement_artifact_load_seconds",
			Help:    "Time taken to load the artifact bundle",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		ArtifactLoadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_artifact_load_failures_total",
			Help: "Total number of failed artifact bundle loads",
		}, []string{"reason"}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "placement_model_age_seconds",
			Help: "Age of the loaded artifact bundle in seconds",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_http_requests_total",
			Help: "Total number of HTTP requests handled by the model server",
		}, []string{"handler", "code"}),
	}
}

// ObserveRequest counts one HTTP response.
func (m *Metrics) ObserveRequest(handler string, code int) {
	m.HTTPRequests.WithLabelValues(handler, strconv.Itoa(code)).Inc()
}
