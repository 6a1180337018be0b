// Package ml serves placement predictions. It loads the artifact bundle once,
// reconciles each input record against the trained feature schema, and runs
// the classifier to produce a label and a probability.
package ml

import (
	"context"

	"placement-predictor/internal/artifact"
	"placement-predictor/internal/features"
)

// PredictorInterface is what the model server needs from a predictor.
type PredictorInterface interface {
	// Predict returns the placement label and probability for one record.
	Predict(ctx context.Context, record features.Record) (Result, error)

	// PredictWithReport also returns what the reconciler did to the record.
	PredictWithReport(ctx context.Context, record features.Record) (Result, features.Report, error)

	// Warmup loads the artifact bundle without predicting.
	Warmup(ctx context.Context) error

	// State reports whether the artifact bundle is loaded.
	State() State

	// Bundle returns the loaded bundle, or nil before the first load.
	Bundle() *artifact.Bundle
}

// Loader fetches the active artifact bundle.
type Loader interface {
	Load(ctx context.Context) (*artifact.Bundle, error)
}

// MetricsInterface defines metrics methods needed by the service
type MetricsInterface interface {
	PredictionsInc(label int)
	FailuresInc(reason string)
	LatencyObserve(seconds float64)
	ProbabilityObserve(p float64)
	ProbabilityFallbackInc()
	FeatureDefaultedInc(feature, reason string)
	ArtifactLoadObserve(seconds float64)
	ArtifactLoadFailuresInc(reason string)
	ModelAgeSet(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) PredictionsInc(int) {}
func (noopMetrics) FailuresInc(string) {}
func (noopMetrics) LatencyObserve(float64) {}
func (noopMetrics) ProbabilityObserve(float64) {}
func (noopMetrics) ProbabilityFallbackInc() {}
func (noopMetrics) FeatureDefaultedInc(string, string) {}
func (noopMetrics) ArtifactLoadObserve(float64) {}
func (noopMetrics) ArtifactLoadFailuresInc(string) {}
func (noopMetrics) ModelAgeSet(float64) {}
