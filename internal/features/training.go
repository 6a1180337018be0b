package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoLabelColumn = errors.New("label column not found")
	ErrInvalidLabel  = errors.New("invalid label value")
	ErrNoRows        = errors.New("no training rows")
)

// TrainingSet is a prepared training table: the schema derived from the
// input header, the raw feature matrix, binary labels and the scaler fitted
// on the matrix.
type TrainingSet struct {
	Schema Schema
	X      [][]float64
	Y      []int
	Scaler *Scaler
}

// Scaled returns X transformed by the fitted scaler. NaN cells stay NaN.
func (ts *TrainingSet) Scaled() [][]float64 {
	out := make([][]float64, len(ts.X))
	for i, row := range ts.X {
		scaled := make([]float64, len(row))
		for j, x := range row {
			scaled[j] = (x - ts.Scaler.Mean[j]) / ts.Scaler.Scale[j]
		}
		out[i] = scaled
	}
	return out
}

// ReadCSV reads a training table with a header row.
func ReadCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("read csv: %w", ErrNoRows)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return header, records[1:], nil
}

// PrepareTraining builds a TrainingSet from a header and string rows. The
// dropped columns and the label column are removed; the remaining columns,
// in header order, become the schema. Cells that are not numeric become NaN
// and are ignored when fitting the scaler.
func PrepareTraining(header []string, rows [][]string, dropped []string, label string) (*TrainingSet, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	drop := make(map[string]struct{}, len(dropped))
	for _, name := range dropped {
		drop[name] = struct{}{}
	}

	labelIdx := -1
	var schema Schema
	var cols []int
	for i, name := range header {
		if name == label {
			labelIdx = i
			continue
		}
		if _, ok := drop[name]; ok {
			continue
		}
		schema = append(schema, name)
		cols = append(cols, i)
	}
	if labelIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoLabelColumn, label)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	ts := &TrainingSet{
		Schema: schema,
		X:      make([][]float64, 0, len(rows)),
		Y:      make([]int, 0, len(rows)),
	}

	invalid := 0
	for n, row := range rows {
		if labelIdx >= len(row) {
			return nil, fmt.Errorf("row %d: %w: missing", n+1, ErrInvalidLabel)
		}
		y, err := parseLabel(row[labelIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}

		x := make([]float64, len(cols))
		for j, c := range cols {
			if c >= len(row) {
				x[j] = math.NaN()
				invalid++
				continue
			}
			f, ok := Coerce(row[c])
			if !ok {
				x[j] = math.NaN()
				invalid++
				continue
			}
			x[j] = f
		}

		ts.X = append(ts.X, x)
		ts.Y = append(ts.Y, y)
	}

	ts.Scaler = FitScaler(ts.X, len(schema))

	log.Info().
		Int("rows", len(ts.X)).
		Int("features", len(schema)).
		Int("invalid_cells", invalid).
		Strs("schema", schema).
		Msg("training set prepared")

	return ts, nil
}

func parseLabel(v string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "1", "true":
		return 1, nil
	case "no", "0", "false":
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, v)
}
