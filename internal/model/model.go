// Package model defines the classifier contract consumed by the inference
// service and provides the linear classifiers that placement bundles ship
// with, plus a JSON codec for persisting them.
package model

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrFeatureCount = errors.New("input has wrong number of features")
	ErrEmptyInput   = errors.New("input has no rows")
)

// Classifier predicts one discrete label (0 or 1) per input row.
type Classifier interface {
	Predict(X mat.Matrix) ([]int, error)
}

// ProbabilityEstimator is implemented by classifiers that can report class
// probabilities. Row i of the result belongs to row i of X; column k is the
// probability of class k.
type ProbabilityEstimator interface {
	PredictProba(X mat.Matrix) (*mat.Dense, error)
}

// FeatureCounter reports how many input columns a classifier was fitted on.
type FeatureCounter interface {
	NumFeatures() int
}

// Kinded classifiers can be persisted with Encode.
type Kinded interface {
	Kind() string
}
