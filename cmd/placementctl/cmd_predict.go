package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"placement-predictor/internal/client"
	"placement-predictor/internal/features"
	"placement-predictor/internal/ml"
)

var predictFlags struct {
	record  string
	file    string
	server  string
	timeout time.Duration
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict placement for one student record",
	Long: "predict reads a JSON object of feature values and prints the label and\n" +
		"probability. Without --server the active local bundle is used.",
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictFlags.record, "record", "", "Record as a JSON object")
	f.StringVarP(&predictFlags.file, "file", "f", "", "Read the record from a file (- for stdin)")
	f.StringVar(&predictFlags.server, "server", "", "Model server base URL (e.g. http://localhost:8000)")
	f.DurationVar(&predictFlags.timeout, "timeout", 5*time.Second, "Request timeout for --server")

	predictCmd.MarkFlagsMutuallyExclusive("record", "file")
	predictCmd.MarkFlagsOneRequired("record", "file")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	record, err := readRecord(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if predictFlags.server != "" {
		c := client.NewREST(predictFlags.server, predictFlags.timeout)
		resp, err := c.Predict(cmd.Context(), record, uuid.NewString())
		if err != nil {
			return err
		}
		printResult(out, ml.Result{Label: resp.Label, Probability: resp.Probability}, resp.Report)
		return nil
	}

	store, closeFn, err := openArtifacts()
	if err != nil {
		return err
	}
	defer closeFn()

	svc := ml.NewService(store)
	res, report, err := svc.PredictWithReport(cmd.Context(), record)
	if err != nil {
		return err
	}
	printResult(out, res, &report)
	return nil
}

func readRecord(cmd *cobra.Command) (features.Record, error) {
	var r io.Reader
	switch {
	case predictFlags.record != "":
		r = strings.NewReader(predictFlags.record)
	case predictFlags.file == "-":
		r = cmd.InOrStdin()
	default:
		f, err := os.Open(predictFlags.file)
		if err != nil {
			return nil, fmt.Errorf("open record: %w", err)
		}
		defer f.Close()
		r = f
	}

	var record features.Record
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("parse record: expected a JSON object")
	}
	return record, nil
}

func printResult(out io.Writer, res ml.Result, report *features.Report) {
	verdict := "not placed"
	if res.Label == 1 {
		verdict = "placed"
	}
	fmt.Fprintf(out, "Label:       %d (%s)\n", res.Label, verdict)
	fmt.Fprintf(out, "Probability: %.2f%%\n", res.Probability*100)
	if report == nil {
		return
	}
	if len(report.Missing) > 0 {
		fmt.Fprintf(out, "Missing:     %s (set to 0)\n", strings.Join(report.Missing, ", "))
	}
	if len(report.Invalid) > 0 {
		fmt.Fprintf(out, "Invalid:     %s (set to 0)\n", strings.Join(report.Invalid, ", "))
	}
	if len(report.Ignored) > 0 {
		fmt.Fprintf(out, "Ignored:     %s\n", strings.Join(report.Ignored, ", "))
	}
}
