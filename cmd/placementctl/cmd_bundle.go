package main

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"placement-predictor/internal/artifact"
	"placement-predictor/internal/common"
	"placement-predictor/internal/features"
	"placement-predictor/internal/model"
)

var bundleFlags struct {
	data  string
	model string
}

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Fit the scaler on a training CSV and save it with a classifier as a new run",
	Long: "bundle reads the training table, derives the feature schema from its header,\n" +
		"fits the standard scaler and saves scaler, schema and classifier together.\n" +
		"The new run becomes active.",
	RunE: runBundle,
}

func init() {
	f := bundleCmd.Flags()
	f.StringVar(&bundleFlags.data, "data", "", "Training CSV with header row (required)")
	f.StringVar(&bundleFlags.model, "model", "", "Encoded classifier JSON (required)")

	_ = bundleCmd.MarkFlagRequired("data")
	_ = bundleCmd.MarkFlagRequired("model")
}

func runBundle(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(bundleFlags.data)
	if err != nil {
		return fmt.Errorf("open training data: %w", err)
	}
	defer f.Close()

	header, rows, err := features.ReadCSV(f)
	if err != nil {
		return err
	}
	ts, err := features.PrepareTraining(header, rows, common.DroppedColumns, common.LabelColumn)
	if err != nil {
		return fmt.Errorf("prepare training data: %w", err)
	}

	raw, err := os.ReadFile(bundleFlags.model)
	if err != nil {
		return fmt.Errorf("read classifier: %w", err)
	}
	clf, err := model.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode classifier: %w", err)
	}

	b := &artifact.Bundle{Scaler: ts.Scaler, Schema: ts.Schema, Classifier: clf}
	if err := b.Validate(); err != nil {
		return err
	}

	store, closeFn, err := openArtifacts()
	if err != nil {
		return err
	}
	defer closeFn()

	m, err := store.Save(cmd.Context(), b)
	if err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:        %s\n", m.RunID)
	fmt.Fprintf(out, "Features:   %d %v\n", m.FeatureCount, []string(ts.Schema))
	fmt.Fprintf(out, "Classifier: %s\n", m.ClassifierKind)
	fmt.Fprintf(out, "Rows:       %d\n", len(ts.X))
	if acc, ok := trainingAccuracy(clf, ts); ok {
		fmt.Fprintf(out, "Accuracy:   %.3f (training rows)\n", acc)
	}
	return nil
}

// trainingAccuracy scores clf on the training rows, treating unparseable
// cells as 0 before scaling the same way inference does.
func trainingAccuracy(clf model.Classifier, ts *features.TrainingSet) (float64, bool) {
	if len(ts.X) == 0 {
		return 0, false
	}
	X := mat.NewDense(len(ts.X), len(ts.Schema), nil)
	for i, row := range ts.X {
		raw := make([]float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				raw[j] = v
			}
		}
		scaled, err := ts.Scaler.Transform(raw)
		if err != nil {
			return 0, false
		}
		X.SetRow(i, scaled)
	}
	pred, err := clf.Predict(X)
	if err != nil {
		return 0, false
	}
	correct := 0
	for i, p := range pred {
		if p == ts.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), true
}
