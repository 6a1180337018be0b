package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the active bundle and print its manifest, schema and scaler",
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, _ []string) error {
	store, closeFn, err := openArtifacts()
	if err != nil {
		return err
	}
	defer closeFn()

	b, err := store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load bundle: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:         %s\n", b.Manifest.RunID)
	if !b.Manifest.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created:     %s\n", b.Manifest.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(out, "Classifier:  %s\n", b.Manifest.ClassifierKind)
	if b.Manifest.Fingerprint != "" {
		fmt.Fprintf(out, "Fingerprint: %s\n", b.Manifest.Fingerprint)
	}
	fmt.Fprintf(out, "Features:\n")
	for i, name := range b.Schema {
		fmt.Fprintf(out, "  %2d %-28s mean=%-10.4g scale=%.4g\n", i, name, b.Scaler.Mean[i], b.Scaler.Scale[i])
	}
	return nil
}
