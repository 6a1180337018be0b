package ml

import (
	"context"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"placement-predictor/internal/artifact"
	"placement-predictor/internal/storage"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu            sync.Mutex
	predictions   map[int]int
	failures      map[string]int
	latencyCount  int
	probabilities []float64
	fallbackUse   int
	defaulted     map[string]int
	loads         int
	loadFailures  map[string]int
	modelAge      float64
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		predictions:  make(map[int]int),
		failures:     make(map[string]int),
		defaulted:    make(map[string]int),
		loadFailures: make(map[string]int),
	}
}

func (m *MockMetrics) PredictionsInc(label int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[label]++
}

func (m *MockMetrics) FailuresInc(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[reason]++
}

func (m *MockMetrics) LatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencyCount++
}

func (m *MockMetrics) ProbabilityObserve(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probabilities = append(m.probabilities, p)
}

func (m *MockMetrics) ProbabilityFallbackInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackUse++
}

func (m *MockMetrics) FeatureDefaultedInc(feature, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaulted[feature+"/"+reason]++
}

func (m *MockMetrics) ArtifactLoadObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *MockMetrics) ArtifactLoadFailuresInc(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadFailures[reason]++
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

// mockLoader counts Load calls and returns bundle or err. gate, if set, is
// waited on before returning.
type mockLoader struct {
	mu     sync.Mutex
	bundle *artifact.Bundle
	err    error
	gate   chan struct{}
	calls  atomic.Int32
}

func (l *mockLoader) Load(ctx context.Context) (*artifact.Bundle, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return l.bundle, nil
}

func (l *mockLoader) set(b *artifact.Bundle, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bundle, l.err = b, err
}

// fixedClassifier returns the same label and probability for every row.
type fixedClassifier struct {
	label int
	proba float64
}

func (c fixedClassifier) Predict(X mat.Matrix) ([]int, error) {
	r, _ := X.Dims()
	out := make([]int, r)
	for i := range out {
		out[i] = c.label
	}
	return out, nil
}

func (c fixedClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 2, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, 1-c.proba)
		out.Set(i, 1, c.proba)
	}
	return out, nil
}

// labelOnlyClassifier has no probability estimates.
type labelOnlyClassifier struct{ label int }

func (c labelOnlyClassifier) Predict(X mat.Matrix) ([]int, error) {
	r, _ := X.Dims()
	out := make([]int, r)
	for i := range out {
		out[i] = c.label
	}
	return out, nil
}

// mockRecorder keeps recorded predictions in memory.
type mockRecorder struct {
	mu      sync.Mutex
	records []storage.PredictionRecord
}

func (r *mockRecorder) StorePrediction(rec storage.PredictionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}
