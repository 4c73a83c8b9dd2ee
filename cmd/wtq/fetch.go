package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/wtq-eval/internal/wtq"
)

func newFetchCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download and extract the WikiTableQuestions dataset",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if st == nil || st.cfg == nil {
				return fmt.Errorf("fetch: missing config (internal error)")
			}
			dataDir, err := wtq.EnsureData(cmd.Context(), st.cfg.Data.SetupDir, st.cfg.Data.CacheDir)
			if err != nil {
				return err
			}
			rows, err := wtq.LoadTestSplit(dataDir)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Dataset ready at %s (%d test questions)\n", dataDir, len(rows))
			return nil
		},
	}
}
