package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/stellarlinkco/wtq-eval/internal/config"
	"github.com/stellarlinkco/wtq-eval/internal/runner"
)

type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
)

func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return FormatTable
	case "json", "jsonl":
		return FormatJSON
	default:
		return ""
	}
}

func resolveOutputFormat(flagValue string, configValue string) (OutputFormat, error) {
	if strings.TrimSpace(flagValue) != "" {
		out := parseOutputFormat(flagValue)
		if out == "" {
			return "", fmt.Errorf("invalid --output %q (expected table|json)", flagValue)
		}
		return out, nil
	}
	if out := parseOutputFormat(configValue); out != "" {
		return out, nil
	}
	return FormatTable, nil
}

func coloredMark(correct bool) string {
	if correct {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

func formatRunTable(res *runner.RunResult, cfg *config.Config, runID string) string {
	if res == nil {
		return "No results.\n"
	}

	var buf bytes.Buffer
	if runID != "" {
		fmt.Fprintf(&buf, "Run: %s\n", runID)
	}
	fmt.Fprintf(&buf, "Model: %s/%s mode=%s\n", cfg.Model.Provider, cfg.Model.Name, cfg.Program.Mode)
	fmt.Fprintf(&buf, "Examples: %d correct=%d errors=%d multi_answer=%d\n",
		res.Total, res.Correct, res.ErrorCount, res.MultiAnswerCount)
	fmt.Fprintf(&buf, "Denotation accuracy: %.4f\n", res.DenotationAccuracy)
	fmt.Fprintf(&buf, "Latency: %dms tokens=%d\n\n", res.TotalLatencyMs, res.TotalTokens)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRESULT\tGOLD\tPREDICTION\tLAT(ms)\tERROR")
	for _, ex := range res.Examples {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			ex.ID,
			coloredMark(ex.Correct),
			truncateCell(strings.Join(ex.Gold, "|")),
			truncateCell(strings.Join(ex.PredItems, "|")),
			ex.LatencyMs,
			truncateCell(ex.Error),
		)
	}
	_ = tw.Flush()
	return buf.String()
}

const maxCellWidth = 40

func truncateCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxCellWidth {
		return s
	}
	return string(runes[:maxCellWidth-3]) + "..."
}

type jsonExampleLine struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Gold      []string `json:"gold"`
	PredText  string   `json:"pred_text"`
	PredItems []string `json:"pred_items"`
	TableName string   `json:"table_name"`
	Correct   bool     `json:"correct"`
	LatencyMs int64    `json:"latency_ms"`
	Error     string   `json:"error,omitempty"`
}

type jsonRunSummaryLine struct {
	Summary jsonRunSummary `json:"summary"`
}

type jsonRunSummary struct {
	RunID              string  `json:"run_id,omitempty"`
	Model              string  `json:"model"`
	Provider           string  `json:"provider"`
	Mode               string  `json:"mode"`
	DenotationAccuracy float64 `json:"denotation_accuracy"`
	Total              int     `json:"n"`
	Correct            int     `json:"correct"`
	MultiAnswerCount   int     `json:"multi_answer_count"`
	ErrorCount         int     `json:"error_count"`
	TotalLatencyMs     int64   `json:"total_latency_ms"`
	TotalTokens        int     `json:"total_tokens"`
}

func printRunJSON(out io.Writer, res *runner.RunResult, cfg *config.Config, runID string) error {
	for _, ex := range res.Examples {
		line := jsonExampleLine{
			ID:        ex.ID,
			Question:  ex.Question,
			Gold:      ex.Gold,
			PredText:  ex.PredText,
			PredItems: ex.PredItems,
			TableName: ex.TableName,
			Correct:   ex.Correct,
			LatencyMs: ex.LatencyMs,
			Error:     ex.Error,
		}
		b, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("run: marshal json: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(b))
	}

	sumLine := jsonRunSummaryLine{Summary: jsonRunSummary{
		RunID:              runID,
		Model:              cfg.Model.Name,
		Provider:           cfg.Model.Provider,
		Mode:               cfg.Program.Mode,
		DenotationAccuracy: res.DenotationAccuracy,
		Total:              res.Total,
		Correct:            res.Correct,
		MultiAnswerCount:   res.MultiAnswerCount,
		ErrorCount:         res.ErrorCount,
		TotalLatencyMs:     res.TotalLatencyMs,
		TotalTokens:        res.TotalTokens,
	}}
	b, err := json.Marshal(sumLine)
	if err != nil {
		return fmt.Errorf("run: marshal json: %w", err)
	}
	_, _ = fmt.Fprintln(out, string(b))
	return nil
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
