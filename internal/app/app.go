// Package app wires configuration, dataset, provider, program, runner and
// persistence into a full evaluation pass.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stellarlinkco/wtq-eval/internal/agent"
	"github.com/stellarlinkco/wtq-eval/internal/config"
	"github.com/stellarlinkco/wtq-eval/internal/llm"
	"github.com/stellarlinkco/wtq-eval/internal/results"
	"github.com/stellarlinkco/wtq-eval/internal/runner"
	"github.com/stellarlinkco/wtq-eval/internal/store"
	"github.com/stellarlinkco/wtq-eval/internal/wtq"
)

// PrepareExamples resolves the dataset directory and loads test examples.
// When cfg.Data.DataDir is set it is used as-is; otherwise the dataset is
// downloaded and extracted under the setup directory on first use.
func PrepareExamples(ctx context.Context, cfg *config.Config) ([]wtq.Example, error) {
	if cfg == nil {
		return nil, errors.New("app: missing config")
	}

	dataDir := strings.TrimSpace(cfg.Data.DataDir)
	if dataDir == "" {
		var err error
		dataDir, err = wtq.EnsureData(ctx, cfg.Data.SetupDir, cfg.Data.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("app: prepare dataset: %w", err)
		}
	}

	examples, err := wtq.LoadTestExamples(dataDir, cfg.Data.TestLimit)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("app: no test examples under %q", dataDir)
	}
	return examples, nil
}

// BuildProgram constructs the provider and question-answering program from
// the configuration.
func BuildProgram(cfg *config.Config) (*agent.Program, llm.ToolLoopProvider, error) {
	if cfg == nil {
		return nil, nil, errors.New("app: missing config")
	}

	provider, err := llm.NewProviderFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	mode, err := agent.ParseMode(cfg.Program.Mode)
	if err != nil {
		return nil, nil, err
	}

	program, err := agent.New(provider, agent.Options{
		Mode:        mode,
		UseCoT:      cfg.Program.UseCoT,
		MaxSteps:    cfg.Program.MaxSteps,
		SampleRows:  cfg.Program.SampleRows,
		RowLimit:    cfg.Data.RowLimit,
		ColLimit:    cfg.Data.ColLimit,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	})
	if err != nil {
		return nil, nil, err
	}
	return program, provider, nil
}

// Execute runs the full example set through the program.
func Execute(ctx context.Context, cfg *config.Config, program *agent.Program, examples []wtq.Example, sink runner.Sink) (*runner.RunResult, error) {
	if cfg == nil {
		return nil, errors.New("app: missing config")
	}
	r, err := runner.New(program, runner.Config{
		Concurrency: cfg.Evaluation.Concurrency,
		Timeout:     cfg.Evaluation.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, examples, sink)
}

// Persist saves the run summary and per-example outcomes.
func Persist(ctx context.Context, writer store.RunWriter, cfg *config.Config, res *runner.RunResult, startedAt, finishedAt time.Time) (*store.RunRecord, error) {
	if writer == nil {
		return nil, errors.New("app: missing store")
	}
	if cfg == nil {
		return nil, errors.New("app: missing config")
	}
	if res == nil {
		return nil, errors.New("app: missing run result")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	record := &store.RunRecord{
		ID:                 runID,
		StartedAt:          startedAt,
		FinishedAt:         finishedAt,
		Model:              cfg.Model.Name,
		Provider:           cfg.Model.Provider,
		Mode:               cfg.Program.Mode,
		Total:              res.Total,
		Correct:            res.Correct,
		MultiAnswerCount:   res.MultiAnswerCount,
		ErrorCount:         res.ErrorCount,
		DenotationAccuracy: res.DenotationAccuracy,
		TotalLatencyMs:     res.TotalLatencyMs,
		TotalTokens:        res.TotalTokens,
		Config:             ConfigSnapshot(cfg),
	}

	examples := make([]store.ExampleRecord, 0, len(res.Examples))
	for _, ex := range res.Examples {
		examples = append(examples, store.ExampleRecord{
			RunID:     runID,
			ExampleID: ex.ID,
			Question:  ex.Question,
			Gold:      ex.Gold,
			PredText:  ex.PredText,
			PredItems: ex.PredItems,
			TableName: ex.TableName,
			Correct:   ex.Correct,
			ToolCalls: len(ex.ToolCalls),
			Steps:     ex.Steps,
			LatencyMs: ex.LatencyMs,
			Tokens:    ex.Tokens,
			Error:     ex.Error,
		})
	}

	if err := writer.SaveRun(ctx, record, examples); err != nil {
		return nil, fmt.Errorf("app: save run: %w", err)
	}
	return record, nil
}

// WriteArtifacts renders predictions and metrics files into the output dir.
func WriteArtifacts(dir string, cfg *config.Config, res *runner.RunResult, runID string) error {
	if cfg == nil {
		return errors.New("app: missing config")
	}
	return results.Write(dir, res, results.RunInfo{
		RunID:    runID,
		Model:    cfg.Model.Name,
		Provider: cfg.Model.Provider,
		Mode:     cfg.Program.Mode,
	})
}

// ConfigSnapshot echoes the settings that shape a run, for storage alongside
// its results.
func ConfigSnapshot(cfg *config.Config) map[string]any {
	if cfg == nil {
		return nil
	}
	return map[string]any{
		"model":       cfg.Model.Name,
		"provider":    cfg.Model.Provider,
		"base_url":    cfg.Model.BaseURL,
		"temperature": cfg.Model.Temperature,
		"max_tokens":  cfg.Model.MaxTokens,
		"mode":        cfg.Program.Mode,
		"use_cot":     cfg.Program.UseCoT,
		"max_steps":   cfg.Program.MaxSteps,
		"sample_rows": cfg.Program.SampleRows,
		"row_limit":   cfg.Data.RowLimit,
		"col_limit":   cfg.Data.ColLimit,
		"test_limit":  cfg.Data.TestLimit,
		"concurrency": cfg.Evaluation.Concurrency,
	}
}
