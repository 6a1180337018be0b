package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"placement-predictor/internal/storage"
)

var exportFlags struct {
	out   string
	days  int
	label int
}

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "Read the prediction log of the bolt backend",
}

var predictionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export logged predictions as newline-delimited JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if rootFlags.dataPath == "" {
			return fmt.Errorf("--data-path is required")
		}

		store, err := storage.New(rootFlags.dataPath)
		if err != nil {
			return err
		}
		defer store.Close()

		end := time.Now()
		start := time.Unix(0, 0)
		if exportFlags.days > 0 {
			start = end.AddDate(0, 0, -exportFlags.days)
		}

		records, err := store.GetPredictionsInRange(start, end)
		if err != nil {
			return fmt.Errorf("read prediction log: %w", err)
		}

		w := cmd.OutOrStdout()
		if exportFlags.out != "" && exportFlags.out != "-" {
			f, err := os.Create(exportFlags.out)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			w = f
		}

		enc := json.NewEncoder(w)
		written := 0
		for _, r := range records {
			if exportFlags.label >= 0 && r.Label != exportFlags.label {
				continue
			}
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
			written++
		}

		if written == 0 {
			log.Warn().Msg("no predictions matched")
		}
		log.Info().
			Int("records", written).
			Time("from", start).
			Time("to", end).
			Msg("predictions exported")
		return nil
	},
}

func init() {
	f := predictionsExportCmd.Flags()
	f.StringVarP(&exportFlags.out, "out", "o", "-", "Output path (- for stdout)")
	f.IntVar(&exportFlags.days, "days", 0, "Only export the last N days (0 for all)")
	f.IntVar(&exportFlags.label, "label", -1, "Only export predictions with this label (-1 for all)")

	predictionsCmd.AddCommand(predictionsExportCmd)
}
