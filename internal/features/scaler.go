package features

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// Scaler is a fitted standard scaler: one (mean, scale) pair per schema
// column, in schema order.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// NewScaler builds a scaler from explicit parameters. Zero scales are
// replaced by 1 so constant columns pass through centred.
func NewScaler(mean, scale []float64) (*Scaler, error) {
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("%w: %d means, %d scales", ErrScalerMismatch, len(mean), len(scale))
	}
	s := &Scaler{
		Mean:  append([]float64(nil), mean...),
		Scale: append([]float64(nil), scale...),
	}
	for i, sc := range s.Scale {
		if sc == 0 {
			s.Scale[i] = 1
		}
	}
	return s, nil
}

// IdentityScaler returns a scaler with mean 0 and scale 1 for n columns.
func IdentityScaler(n int) *Scaler {
	s := &Scaler{Mean: make([]float64, n), Scale: make([]float64, n)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

// Len returns the number of columns the scaler was fitted on.
func (s *Scaler) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Mean)
}

// Validate checks the parameters are consistent with a schema of n columns.
func (s *Scaler) Validate(n int) error {
	if s == nil {
		return fmt.Errorf("%w: scaler is nil", ErrScalerMismatch)
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("%w: %d means, %d scales", ErrScalerMismatch, len(s.Mean), len(s.Scale))
	}
	if len(s.Mean) != n {
		return fmt.Errorf("%w: scaler has %d columns, schema has %d", ErrScalerMismatch, len(s.Mean), n)
	}
	for i, sc := range s.Scale {
		if sc == 0 || math.IsNaN(sc) || math.IsInf(sc, 0) {
			return fmt.Errorf("%w: invalid scale %v at column %d", ErrScalerMismatch, sc, i)
		}
	}
	return nil
}

// FitScaler computes per-column mean and population standard deviation over
// rows. NaN cells are ignored; a column with no finite values or zero
// variance gets scale 1.
func FitScaler(rows [][]float64, cols int) *Scaler {
	s := IdentityScaler(cols)
	col := make([]float64, 0, len(rows))

	for j := 0; j < cols; j++ {
		col = col[:0]
		for _, row := range rows {
			if j < len(row) && !math.IsNaN(row[j]) {
				col = append(col, row[j])
			}
		}
		if len(col) == 0 {
			log.Warn().Int("column", j).Msg("no finite values for column, using identity scaling")
			continue
		}

		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std > 0 {
			s.Scale[j] = std
		}
	}

	return s
}

// Transform scales v in place order: out[i] = (v[i] - mean[i]) / scale[i].
func (s *Scaler) Transform(v []float64) (Vector, error) {
	if err := s.Validate(len(v)); err != nil {
		return nil, err
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = (x - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
