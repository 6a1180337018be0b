package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"placement-predictor/internal/artifact"
	"placement-predictor/internal/common"
	"placement-predictor/internal/features"
	"placement-predictor/internal/model"
)

// Result is the outcome of one prediction.
type Result struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

// Service runs reconciled records through the cached classifier.
type Service struct {
	cache   *ArtifactCache
	metrics MetricsInterface
	dropped []string
}

var _ PredictorInterface = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithMetrics reports into m.
func WithMetrics(m MetricsInterface) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDroppedColumns overrides the columns removed before alignment.
func WithDroppedColumns(cols []string) Option {
	return func(s *Service) { s.dropped = cols }
}

// NewService returns a service that loads its bundle from loader on first
// use.
func NewService(loader Loader, opts ...Option) *Service {
	s := &Service{
		metrics: noopMetrics{},
		dropped: common.DroppedColumns,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = NewArtifactCache(loader, s.metrics)
	return s
}

// Warmup loads the artifact bundle ahead of the first request.
func (s *Service) Warmup(ctx context.Context) error {
	_, err := s.cache.GetOrLoad(ctx)
	return err
}

func (s *Service) State() State { return s.cache.State() }

func (s *Service) Bundle() *artifact.Bundle { return s.cache.Bundle() }

// Predict returns the placement label and probability for record.
func (s *Service) Predict(ctx context.Context, record features.Record) (Result, error) {
	res, _, err := s.PredictWithReport(ctx, record)
	return res, err
}

// PredictWithReport is Predict plus the reconciliation report.
func (s *Service) PredictWithReport(ctx context.Context, record features.Record) (Result, features.Report, error) {
	start := time.Now()
	res, report, err := s.predict(ctx, record)
	s.metrics.LatencyObserve(time.Since(start).Seconds())
	if err != nil {
		s.metrics.FailuresInc(FailureReason(err))
		return Result{}, report, err
	}
	s.metrics.PredictionsInc(res.Label)
	s.metrics.ProbabilityObserve(res.Probability)
	return res, report, nil
}

func (s *Service) predict(ctx context.Context, record features.Record) (Result, features.Report, error) {
	b, err := s.cache.GetOrLoad(ctx)
	if err != nil {
		return Result{}, features.Report{}, err
	}

	vec, report, err := features.Align(record, b.Schema, b.Scaler, s.dropped)
	if err != nil {
		return Result{}, report, fmt.Errorf("%w: %w", artifact.ErrArtifactVersionMismatch, err)
	}
	s.recordDefaults(report)

	X := mat.NewDense(1, len(vec), []float64(vec))

	labels, err := b.Classifier.Predict(X)
	if err != nil {
		return Result{}, report, fmt.Errorf("classifier predict: %w", err)
	}
	if len(labels) != 1 {
		return Result{}, report, fmt.Errorf("%w: got %d labels for one row", ErrInvalidLabel, len(labels))
	}
	label := labels[0]
	if label != 0 && label != 1 {
		return Result{}, report, fmt.Errorf("%w: %d", ErrInvalidLabel, label)
	}

	pe, ok := b.Classifier.(model.ProbabilityEstimator)
	if !ok {
		s.metrics.ProbabilityFallbackInc()
		return Result{Label: label, Probability: 0.0}, report, nil
	}

	proba, err := pe.PredictProba(X)
	if err != nil {
		return Result{}, report, fmt.Errorf("classifier predict proba: %w", err)
	}
	if r, c := proba.Dims(); r != 1 || c < 2 {
		return Result{}, report, fmt.Errorf("%w: probability matrix is %dx%d", ErrInvalidProbability, r, c)
	}
	p := proba.At(0, 1)
	if math.IsNaN(p) || p < 0 || p > 1 {
		return Result{}, report, fmt.Errorf("%w: %v", ErrInvalidProbability, p)
	}

	return Result{Label: label, Probability: p}, report, nil
}

func (s *Service) recordDefaults(r features.Report) {
	if !r.Defaulted() {
		return
	}
	for _, f := range r.Missing {
		s.metrics.FeatureDefaultedInc(f, "missing")
	}
	for _, f := range r.Invalid {
		s.metrics.FeatureDefaultedInc(f, "invalid")
	}
	log.Debug().
		Strs("missing", r.Missing).
		Strs("invalid", r.Invalid).
		Strs("ignored", r.Ignored).
		Msg("input fields defaulted to 0")
}
