package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/wtq-eval/internal/metrics"
	"github.com/stellarlinkco/wtq-eval/internal/results"
)

type scoreOptions struct {
	verbose bool
}

func newScoreCmd() *cobra.Command {
	var opts scoreOptions

	cmd := &cobra.Command{
		Use:   "score <predictions.jsonl>",
		Short: "Re-score a predictions file offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args[0], &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "list every mismatched example")
	return cmd
}

func runScore(cmd *cobra.Command, path string, opts *scoreOptions) error {
	records, err := results.ReadJSONL(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("score: no records in %q", path)
	}

	golds := make([][]string, 0, len(records))
	preds := make([][]string, 0, len(records))
	for _, rec := range records {
		golds = append(golds, rec.Gold)
		preds = append(preds, metrics.SplitPrediction(rec.PredText, len(rec.Gold)))
	}

	acc, err := metrics.DenotationAccuracy(golds, preds)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	correct := 0
	var wrong []results.Record
	for i, rec := range records {
		if metrics.SetsEqual(golds[i], preds[i]) {
			correct++
		} else {
			wrong = append(wrong, rec)
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Examples: %d correct=%d\n", len(records), correct)
	_, _ = fmt.Fprintf(out, "Denotation accuracy: %.4f\n", acc)

	if opts.verbose && len(wrong) > 0 {
		_, _ = fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tGOLD\tPREDICTION")
		for _, rec := range wrong {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.ID, truncateCell(strings.Join(rec.Gold, "|")), truncateCell(rec.PredText))
		}
		return tw.Flush()
	}
	return nil
}
