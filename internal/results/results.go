// Package results writes evaluation artifacts: one plain-text predictions
// file, one JSONL file with per-example detail, and a metrics summary.
package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stellarlinkco/wtq-eval/internal/runner"
)

const (
	PredictionsTextFile  = "predictions.txt"
	PredictionsJSONLFile = "predictions.jsonl"
	MetricsFile          = "metrics.json"
)

// Record is one line of predictions.jsonl.
type Record struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Gold      []string `json:"gold"`
	PredText  string   `json:"pred_text"`
	PredItems []string `json:"pred_items"`
	TableName string   `json:"table_name"`
	Correct   bool     `json:"correct"`
	Error     string   `json:"error,omitempty"`
}

// Metrics is the metrics.json payload.
type Metrics struct {
	DenotationAccuracy float64   `json:"denotation_accuracy"`
	N                  int       `json:"n"`
	Correct            int       `json:"correct"`
	MultiAnswerCount   int       `json:"multi_answer_count"`
	ErrorCount         int       `json:"error_count"`
	TotalLatencyMs     int64     `json:"total_latency_ms"`
	TotalTokens        int       `json:"total_tokens"`
	Model              string    `json:"model"`
	Provider           string    `json:"provider"`
	Mode               string    `json:"mode"`
	CreatedAt          time.Time `json:"created_at"`
	RunID              string    `json:"run_id,omitempty"`
}

// RunInfo labels the artifacts with the configuration that produced them.
type RunInfo struct {
	RunID    string
	Model    string
	Provider string
	Mode     string
}

// Write renders all three artifacts into dir, creating it if needed.
func Write(dir string, res *runner.RunResult, info RunInfo) error {
	if res == nil {
		return fmt.Errorf("results: nil run result")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("results: create dir: %w", err)
	}
	if err := writeText(filepath.Join(dir, PredictionsTextFile), res); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, PredictionsJSONLFile), res); err != nil {
		return err
	}
	return writeMetrics(filepath.Join(dir, MetricsFile), res, info)
}

func writeText(path string, res *runner.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("results: create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, ex := range res.Examples {
		fmt.Fprintln(w, strings.Join(ex.PredItems, "|"))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("results: write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func writeJSONL(path string, res *runner.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("results: create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ex := range res.Examples {
		rec := Record{
			ID:        ex.ID,
			Question:  ex.Question,
			Gold:      ex.Gold,
			PredText:  ex.PredText,
			PredItems: ex.PredItems,
			TableName: ex.TableName,
			Correct:   ex.Correct,
			Error:     ex.Error,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("results: encode record %s: %w", ex.ID, err)
		}
	}
	return f.Close()
}

func writeMetrics(path string, res *runner.RunResult, info RunInfo) error {
	m := Metrics{
		DenotationAccuracy: res.DenotationAccuracy,
		N:                  res.Total,
		Correct:            res.Correct,
		MultiAnswerCount:   res.MultiAnswerCount,
		ErrorCount:         res.ErrorCount,
		TotalLatencyMs:     res.TotalLatencyMs,
		TotalTokens:        res.TotalTokens,
		Model:              info.Model,
		Provider:           info.Provider,
		Mode:               info.Mode,
		CreatedAt:          time.Now().UTC(),
		RunID:              info.RunID,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("results: encode metrics: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("results: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadJSONL loads a predictions.jsonl file back for offline re-scoring.
func ReadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("results: open %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("results: parse %s line %d: %w", filepath.Base(path), line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("results: read %s: %w", path, err)
	}
	return records, nil
}
