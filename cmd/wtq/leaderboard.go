package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/wtq-eval/internal/store"
)

type leaderboardOptions struct {
	top    int
	format string
}

func newLeaderboardCmd(st *cliState) *cobra.Command {
	var opts leaderboardOptions

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank models by denotation accuracy",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd, st, &opts)
		},
	}

	cmd.Flags().IntVar(&opts.top, "top", 20, "top N entries")
	cmd.Flags().StringVar(&opts.format, "format", "table", "output format: table|json")

	return cmd
}

func runLeaderboard(cmd *cobra.Command, st *cliState, opts *leaderboardOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("leaderboard: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("leaderboard: nil options")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	entries, err := stor.Leaderboard(cmd.Context(), opts.top)
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(opts.format)) {
	case "", "table":
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tMODEL\tPROVIDER\tMODE\tRUNS\tBEST\tAVG\tLAST_RUN")
		for i, e := range entries {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.4f\t%.4f\t%s\n",
				i+1,
				e.Model,
				e.Provider,
				e.Mode,
				e.Runs,
				e.BestAccuracy,
				e.AvgAccuracy,
				formatTime(e.LastRunAt),
			)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		return fmt.Errorf("leaderboard: invalid --format %q (expected table|json)", opts.format)
	}
}
