package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "wtq-eval.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func testRun(id string) (*RunRecord, []ExampleRecord) {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	run := &RunRecord{
		ID:                 id,
		StartedAt:          started,
		FinishedAt:         started.Add(2 * time.Minute),
		Model:              "gemma3:4b",
		Provider:           "ollama",
		Mode:               "direct",
		Total:              2,
		Correct:            1,
		MultiAnswerCount:   1,
		ErrorCount:         0,
		DenotationAccuracy: 0.5,
		TotalLatencyMs:     4200,
		TotalTokens:        1234,
		Config:             map[string]any{"test_limit": float64(2)},
	}
	examples := []ExampleRecord{
		{
			RunID:     id,
			ExampleID: "nu-0",
			Question:  "which country topped the table?",
			Gold:      []string{"Italy"},
			PredText:  "Italy",
			PredItems: []string{"italy"},
			TableName: "csv/204-csv/590.tsv",
			Correct:   true,
			LatencyMs: 2100,
			Tokens:    600,
		},
		{
			RunID:     id,
			ExampleID: "nu-1",
			Question:  "which cities are listed?",
			Gold:      []string{"Rome", "Milan"},
			PredText:  "Rome",
			PredItems: []string{"Rome"},
			TableName: "csv/204-csv/590.tsv",
			Correct:   false,
			ToolCalls: 2,
			Steps:     3,
			LatencyMs: 2100,
			Tokens:    634,
		},
	}
	return run, examples
}

func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	run, examples := testRun(id)
	if err := st.SaveRun(ctx, run, examples); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := st.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Model != "gemma3:4b" || got.Provider != "ollama" || got.Mode != "direct" {
		t.Fatalf("run identity: %+v", got)
	}
	if got.Total != 2 || got.Correct != 1 || got.DenotationAccuracy != 0.5 {
		t.Fatalf("run counters: %+v", got)
	}
	if !got.StartedAt.Equal(run.StartedAt) || !got.FinishedAt.Equal(run.FinishedAt) {
		t.Fatalf("timestamps: %v %v", got.StartedAt, got.FinishedAt)
	}
	if got.Config["test_limit"] != float64(2) {
		t.Fatalf("config: %+v", got.Config)
	}
}

func TestGetExampleResults(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	run, examples := testRun(id)
	if err := st.SaveRun(ctx, run, examples); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := st.GetExampleResults(ctx, id)
	if err != nil {
		t.Fatalf("GetExampleResults: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("examples: %d", len(got))
	}
	if got[0].ExampleID != "nu-0" || !got[0].Correct {
		t.Fatalf("example 0: %+v", got[0])
	}
	if len(got[1].Gold) != 2 || got[1].Gold[1] != "Milan" {
		t.Fatalf("example 1 gold: %+v", got[1].Gold)
	}
	if got[1].ToolCalls != 2 || got[1].Steps != 3 {
		t.Fatalf("example 1 agent stats: %+v", got[1])
	}
}

func TestGetRunMissing(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	_, err := st.GetRun(context.Background(), uuid.NewString())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err: %v", err)
	}
}

func TestSaveRunValidation(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	if err := st.SaveRun(ctx, nil, nil); err == nil {
		t.Fatalf("expected error for nil run")
	}
	if err := st.SaveRun(ctx, &RunRecord{}, nil); err == nil {
		t.Fatalf("expected error for empty id")
	}
	run, _ := testRun(uuid.NewString())
	run.StartedAt = time.Time{}
	if err := st.SaveRun(ctx, run, nil); err == nil {
		t.Fatalf("expected error for missing timestamps")
	}
}

func TestSaveRunRollsBackOnBadExample(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	run, examples := testRun(id)
	examples[1].ExampleID = ""
	if err := st.SaveRun(ctx, run, examples); err == nil {
		t.Fatalf("expected error for empty example id")
	}

	// The run row must not survive the failed transaction.
	if _, err := st.GetRun(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("run persisted after rollback: %v", err)
	}
}

func TestListRunsFiltering(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	seed := []struct {
		model string
		mode  string
		at    time.Time
		acc   float64
	}{
		{"gemma3:4b", "direct", base, 0.4},
		{"gemma3:4b", "agent", base.Add(time.Hour), 0.6},
		{"qwen2.5:7b", "direct", base.Add(2 * time.Hour), 0.5},
	}
	for _, s := range seed {
		run, examples := testRun(uuid.NewString())
		run.Model = s.model
		run.Mode = s.mode
		run.StartedAt = s.at
		run.FinishedAt = s.at.Add(time.Minute)
		run.DenotationAccuracy = s.acc
		if err := st.SaveRun(ctx, run, examples); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	t.Run("all newest first", func(t *testing.T) {
		runs, err := st.ListRuns(ctx, RunFilter{})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 3 || runs[0].Model != "qwen2.5:7b" {
			t.Fatalf("runs: %d first=%s", len(runs), runs[0].Model)
		}
	})

	t.Run("by model", func(t *testing.T) {
		runs, err := st.ListRuns(ctx, RunFilter{Model: "gemma3:4b"})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("runs: %d", len(runs))
		}
	})

	t.Run("by mode", func(t *testing.T) {
		runs, err := st.ListRuns(ctx, RunFilter{Mode: "agent"})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 1 || runs[0].Mode != "agent" {
			t.Fatalf("runs: %+v", runs)
		}
	})

	t.Run("since and limit", func(t *testing.T) {
		runs, err := st.ListRuns(ctx, RunFilter{Since: base.Add(30 * time.Minute), Limit: 1})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 1 || runs[0].Model != "qwen2.5:7b" {
			t.Fatalf("runs: %+v", runs)
		}
	})
}

func TestModelHistoryAndLeaderboard(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, acc := range []float64{0.3, 0.5} {
		run, examples := testRun(uuid.NewString())
		run.StartedAt = base.Add(time.Duration(i) * time.Hour)
		run.FinishedAt = run.StartedAt.Add(time.Minute)
		run.DenotationAccuracy = acc
		if err := st.SaveRun(ctx, run, examples); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	history, err := st.GetModelHistory(ctx, "gemma3:4b", 10)
	if err != nil {
		t.Fatalf("GetModelHistory: %v", err)
	}
	if len(history) != 2 || history[0].DenotationAccuracy != 0.5 {
		t.Fatalf("history: %+v", history)
	}

	board, err := st.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(board) != 1 {
		t.Fatalf("entries: %d", len(board))
	}
	entry := board[0]
	if entry.Model != "gemma3:4b" || entry.Runs != 2 {
		t.Fatalf("entry: %+v", entry)
	}
	if entry.BestAccuracy != 0.5 || entry.AvgAccuracy != 0.4 {
		t.Fatalf("accuracy: %+v", entry)
	}
	if !entry.LastRunAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("last run: %v", entry.LastRunAt)
	}
}

func TestNewSQLiteStoreEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := NewSQLiteStore("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
