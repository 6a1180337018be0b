package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow method set the inference
// service reports into.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(label int) {
	w.m.PredictionsTotal.WithLabelValues(strconv.Itoa(label)).Inc()
}

func (w *MetricsWrapper) FailuresInc(reason string) {
	w.m.PredictionFailures.WithLabelValues(reason).Inc()
}

func (w *MetricsWrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) ProbabilityObserve(p float64) {
	w.m.PredictionProbability.Observe(p)
}

func (w *MetricsWrapper) ProbabilityFallbackInc() {
	w.m.ProbabilityFallback.Inc()
}

func (w *MetricsWrapper) FeatureDefaultedInc(feature, reason string) {
	w.m.DefaultedFeatures.WithLabelValues(feature, reason).Inc()
}

func (w *MetricsWrapper) ArtifactLoadObserve(seconds float64) {
	w.m.ArtifactLoadDuration.Observe(seconds)
}

func (w *MetricsWrapper) ArtifactLoadFailuresInc(reason string) {
	w.m.ArtifactLoadFailures.WithLabelValues(reason).Inc()
}

func (w *MetricsWrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}
