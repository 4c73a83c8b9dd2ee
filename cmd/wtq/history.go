package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/wtq-eval/internal/store"
)

type historyOptions struct {
	model string
	mode  string
	limit int
	since string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past evaluation runs",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "model name to filter")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "program mode to filter")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only runs since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(st))
	return cmd
}

func newHistoryShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-example results for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, st, args[0])
		},
	}
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.RunReader = stor

	filter := store.RunFilter{
		Model: strings.TrimSpace(opts.model),
		Mode:  strings.TrimSpace(opts.mode),
		Since: since,
		Limit: opts.limit,
	}
	runs, err := reader.ListRuns(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tSTARTED\tMODEL\tMODE\tN\tCORRECT\tACCURACY")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%.4f\n",
			r.ID,
			formatTime(r.StartedAt),
			r.Model,
			r.Mode,
			r.Total,
			r.Correct,
			r.DenotationAccuracy,
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, runID string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("history: missing run id")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.RunReader = stor

	run, err := reader.GetRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history: run %q not found", runID)
		}
		return err
	}

	examples, err := reader.GetExampleResults(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run: %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Started: %s\n", formatTime(run.StartedAt))
	_, _ = fmt.Fprintf(out, "Finished: %s\n", formatTime(run.FinishedAt))
	_, _ = fmt.Fprintf(out, "Model: %s/%s mode=%s\n", run.Provider, run.Model, run.Mode)
	_, _ = fmt.Fprintf(out, "Examples: %d correct=%d errors=%d accuracy=%.4f\n",
		run.Total, run.Correct, run.ErrorCount, run.DenotationAccuracy)

	if len(examples) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRESULT\tGOLD\tPREDICTION\tLAT(ms)\tERROR")
	for _, ex := range examples {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			ex.ExampleID,
			statusLabel(ex.Correct),
			truncateCell(strings.Join(ex.Gold, "|")),
			truncateCell(strings.Join(ex.PredItems, "|")),
			ex.LatencyMs,
			truncateCell(ex.Error),
		)
	}
	return tw.Flush()
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("history: invalid --since %q (expected YYYY-MM-DD or RFC3339)", s)
}

func statusLabel(correct bool) string {
	if correct {
		return "PASS"
	}
	return "FAIL"
}
