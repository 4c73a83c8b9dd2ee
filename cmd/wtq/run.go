package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/wtq-eval/internal/app"
	"github.com/stellarlinkco/wtq-eval/internal/config"
	"github.com/stellarlinkco/wtq-eval/internal/llm"
	"github.com/stellarlinkco/wtq-eval/internal/runner"
	"github.com/stellarlinkco/wtq-eval/internal/store"
)

type runOptions struct {
	limit   int
	mode    string
	cot     bool
	output  string
	outDir  string
	noStore bool
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation over the test split",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluation(cmd, st, &opts)
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", 0, "number of test examples (overrides config; <0 means full split)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "program mode: direct|agent (overrides config)")
	cmd.Flags().BoolVar(&opts.cot, "cot", false, "ask for step-by-step reasoning in direct mode")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json (overrides config)")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "artifact directory (overrides config)")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "skip persisting the run to storage")

	return cmd
}

func runEvaluation(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("run: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("run: nil options")
	}

	cfg := st.cfg
	if opts.limit != 0 {
		cfg.Data.TestLimit = opts.limit
	}
	if strings.TrimSpace(opts.mode) != "" {
		cfg.Program.Mode = opts.mode
	}
	if opts.cot {
		cfg.Program.UseCoT = true
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	output, err := resolveOutputFormat(opts.output, cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	outDir := strings.TrimSpace(opts.outDir)
	if outDir == "" {
		outDir = cfg.Output.Dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	warnIfOllamaDown(ctx, cmd, cfg)

	examples, err := app.PrepareExamples(ctx, cfg)
	if err != nil {
		return err
	}
	program, _, err := app.BuildProgram(cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	errOut := cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(errOut, "Evaluating %d examples with %s/%s (mode=%s)\n",
		len(examples), cfg.Model.Provider, cfg.Model.Name, cfg.Program.Mode)

	sink := func(done, total int, res runner.ExampleResult) {
		mark := "✗"
		if res.Correct {
			mark = "✓"
		}
		if res.Error != "" {
			mark = "!"
		}
		_, _ = fmt.Fprintf(errOut, "[%d/%d] %s %s\n", done, total, mark, res.ID)
	}

	startedAt := time.Now().UTC()
	res, err := app.Execute(ctx, cfg, program, examples, sink)
	if err != nil {
		return err
	}
	finishedAt := time.Now().UTC()

	runID := ""
	if !opts.noStore {
		stor, err := store.Open(cfg)
		if err != nil {
			return fmt.Errorf("run: open store: %w", err)
		}
		defer stor.Close()

		record, err := app.Persist(cmd.Context(), stor, cfg, res, startedAt, finishedAt)
		if err != nil {
			return err
		}
		runID = record.ID
	}

	if err := app.WriteArtifacts(outDir, cfg, res, runID); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch output {
	case FormatTable:
		_, _ = fmt.Fprint(out, formatRunTable(res, cfg, runID))
	case FormatJSON:
		if err := printRunJSON(out, res, cfg, runID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("run: internal error: unknown output format %q", output)
	}

	_, _ = fmt.Fprintf(errOut, "Artifacts written to %s\n", outDir)
	return nil
}

// warnIfOllamaDown pings the local Ollama endpoint so a dead daemon fails
// fast with a readable hint instead of per-example timeouts.
func warnIfOllamaDown(ctx context.Context, cmd *cobra.Command, cfg *config.Config) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Model.Provider))
	if provider != "ollama" && provider != "openai" {
		return
	}
	baseURL := cfg.Model.BaseURL
	if !strings.Contains(baseURL, "localhost") && !strings.Contains(baseURL, "127.0.0.1") {
		return
	}
	models, err := llm.PingOllama(ctx, baseURL)
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Ollama unreachable at %s: %v\n", baseURL, err)
		return
	}
	for _, m := range models {
		if m == cfg.Model.Name {
			return
		}
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: model %q not found locally; run `ollama pull %s`\n",
		cfg.Model.Name, cfg.Model.Name)
}
