package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, activate or roll back training runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeFn, err := openArtifacts()
		if err != nil {
			return err
		}
		defer closeFn()

		runs, err := store.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved runs.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tCREATED\tCLASSIFIER\tFEATURES")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.ClassifierKind, r.FeatureCount)
		}
		return w.Flush()
	},
}

var runsActivateCmd = &cobra.Command{
	Use:   "activate <run-id>",
	Short: "Make a saved run the active bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openArtifacts()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := store.Activate(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Activated %s\n", args[0])
		return nil
	},
}

var runsRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Activate the run saved before the active one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeFn, err := openArtifacts()
		if err != nil {
			return err
		}
		defer closeFn()

		m, err := store.Rollback(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to %s\n", m.RunID)
		return nil
	},
}

func init() {
	runsCmd.AddCommand(runsListCmd, runsActivateCmd, runsRollbackCmd)
}
