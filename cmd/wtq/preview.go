package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/wtq-eval/internal/app"
	"github.com/stellarlinkco/wtq-eval/internal/tabletext"
)

type previewOptions struct {
	limit int
	rows  int
	full  bool
}

func newPreviewCmd(st *cliState) *cobra.Command {
	var opts previewOptions

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show test questions and their tables without calling a model",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, st, &opts)
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", 3, "number of examples to preview")
	cmd.Flags().IntVar(&opts.rows, "rows", 5, "table rows per example")
	cmd.Flags().BoolVar(&opts.full, "full", false, "print the exact prompt serialization instead")

	return cmd
}

func runPreview(cmd *cobra.Command, st *cliState, opts *previewOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("preview: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("preview: nil options")
	}
	if opts.limit <= 0 {
		return fmt.Errorf("preview: --limit must be > 0")
	}

	cfg := st.cfg
	cfg.Data.TestLimit = opts.limit
	examples, err := app.PrepareExamples(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, ex := range examples {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		_, _ = fmt.Fprintf(out, "[%s] %s\n", ex.ID, ex.Question)
		_, _ = fmt.Fprintf(out, "Gold: %s\n", strings.Join(ex.Answers, " | "))
		if opts.full {
			_, _ = fmt.Fprintln(out, tabletext.Serialize(&ex.Table, cfg.Data.RowLimit, cfg.Data.ColLimit))
		} else {
			_, _ = fmt.Fprintf(out, "Table: %s\n", ex.Table.Name)
			_, _ = fmt.Fprintln(out, tabletext.Preview(&ex.Table, opts.rows))
		}
	}
	return nil
}
