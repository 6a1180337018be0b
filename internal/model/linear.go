package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	KindLogisticRegression = "logistic_regression"
	KindLinearSVC          = "linear_svc"
)

// linear holds the weights shared by the linear classifiers.
type linear struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (l *linear) NumFeatures() int { return len(l.Coef) }

// decision returns w·x + b for every row of X. Each term and the running sum
// saturate at ±MaxFloat64, so finite inputs never produce NaN.
func (l *linear) decision(X mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, ErrEmptyInput
	}
	if cols != len(l.Coef) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrFeatureCount, len(l.Coef), cols)
	}

	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		sum := l.Intercept
		for j, w := range l.Coef {
			sum = saturate(sum + saturate(w*X.At(i, j)))
		}
		out[i] = sum
	}
	return out, nil
}

// saturate clamps v to the finite range; NaN becomes 0.
func saturate(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxFloat64:
		return math.MaxFloat64
	case v < -math.MaxFloat64:
		return -math.MaxFloat64
	}
	return v
}

func labels(scores []float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s > 0 {
			out[i] = 1
		}
	}
	return out
}

// LogisticRegression is a binary logistic model fitted offline.
type LogisticRegression struct {
	linear
}

// NewLogisticRegression returns a model with the given weights.
func NewLogisticRegression(coef []float64, intercept float64) *LogisticRegression {
	return &LogisticRegression{linear{Coef: append([]float64(nil), coef...), Intercept: intercept}}
}

func (m *LogisticRegression) Kind() string { return KindLogisticRegression }

// Predict returns 1 where the decision function is positive.
func (m *LogisticRegression) Predict(X mat.Matrix) ([]int, error) {
	scores, err := m.decision(X)
	if err != nil {
		return nil, err
	}
	return labels(scores), nil
}

// PredictProba returns [P(0), P(1)] per row.
func (m *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	scores, err := m.decision(X)
	if err != nil {
		return nil, err
	}
	data := make([]float64, 0, 2*len(scores))
	for _, s := range scores {
		p := sigmoid(s)
		data = append(data, 1-p, p)
	}
	return mat.NewDense(len(scores), 2, data), nil
}

// LinearSVC is a linear support vector classifier. It has no probability
// estimates.
type LinearSVC struct {
	linear
}

// NewLinearSVC returns a model with the given weights.
func NewLinearSVC(coef []float64, intercept float64) *LinearSVC {
	return &LinearSVC{linear{Coef: append([]float64(nil), coef...), Intercept: intercept}}
}

func (m *LinearSVC) Kind() string { return KindLinearSVC }

// Predict returns 1 where the decision function is positive.
func (m *LinearSVC) Predict(X mat.Matrix) ([]int, error) {
	scores, err := m.decision(X)
	if err != nil {
		return nil, err
	}
	return labels(scores), nil
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
