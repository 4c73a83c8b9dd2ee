package store

import (
	"context"
	"time"
)

// RunWriter defines persistence for run summaries and per-example results.
type RunWriter interface {
	SaveRun(ctx context.Context, run *RunRecord, examples []ExampleRecord) error
}

// RunReader defines read access to run and example data.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	GetExampleResults(ctx context.Context, runID string) ([]ExampleRecord, error)
}

// Analytics defines query helpers over run history.
type Analytics interface {
	GetModelHistory(ctx context.Context, model string, limit int) ([]*RunRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// Store defines persistence for evaluation runs.
type Store interface {
	RunWriter
	RunReader
	Analytics
	Close() error
}

// RunRecord stores a single evaluation run summary.
type RunRecord struct {
	ID                 string
	StartedAt          time.Time
	FinishedAt         time.Time
	Model              string
	Provider           string
	Mode               string
	Total              int
	Correct            int
	MultiAnswerCount   int
	ErrorCount         int
	DenotationAccuracy float64
	TotalLatencyMs     int64
	TotalTokens        int
	Config             map[string]any // Serialized config
}

// ExampleRecord stores one question's outcome within a run.
type ExampleRecord struct {
	RunID     string
	ExampleID string
	Question  string
	Gold      []string
	PredText  string
	PredItems []string
	TableName string
	Correct   bool
	ToolCalls int
	Steps     int
	LatencyMs int64
	Tokens    int
	Error     string
}

// RunFilter filters run listings.
type RunFilter struct {
	Model    string
	Provider string
	Mode     string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// LeaderboardEntry aggregates run history per model/provider/mode.
type LeaderboardEntry struct {
	Model        string
	Provider     string
	Mode         string
	Runs         int
	BestAccuracy float64
	AvgAccuracy  float64
	LastRunAt    time.Time
}
