// placementctl manages placement model artifacts and queries predictions.
//
// Usage:
//
//	placementctl bundle --data students.csv --model model.json
//	placementctl inspect
//	placementctl predict --record '{"Maths":60}' [--server http://localhost:8000]
//	placementctl runs list|activate <run-id>|rollback
//	placementctl sample --rows 500 -o students.csv
//	placementctl predictions export --data-path data --days 7
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"placement-predictor/internal/common"
	"placement-predictor/internal/storage"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	backend  string
	dir      string
	dataPath string
	verbose  bool
}

var rootCmd = &cobra.Command{
	Use:   "placementctl",
	Short: "Manage placement model artifacts and query predictions",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		if rootFlags.verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.backend, "backend", envOr(common.EnvArtifactBackend, common.DefaultArtifactBackend), "Artifact backend (dir|bolt)")
	f.StringVar(&rootFlags.dir, "artifact-dir", envOr(common.EnvArtifactDir, common.DefaultArtifactDir), "Artifact directory for the dir backend")
	f.StringVar(&rootFlags.dataPath, "data-path", os.Getenv(common.EnvDataPath), "Database directory for the bolt backend")
	f.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(predictionsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openArtifacts() (storage.Artifacts, func() error, error) {
	a, _, closeFn, err := storage.OpenArtifacts(rootFlags.backend, rootFlags.dir, rootFlags.dataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact store: %w", err)
	}
	return a, closeFn, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
