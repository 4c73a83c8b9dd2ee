package runner

import (
	"time"

	"github.com/stellarlinkco/wtq-eval/internal/llm"
)

// Config bounds the evaluation loop.
type Config struct {
	Concurrency int
	Timeout     time.Duration // per-example; 0 means none
}

// ExampleResult reports the outcome of one question.
type ExampleResult struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	Gold      []string      `json:"gold"`
	PredText  string        `json:"pred_text"`
	PredItems []string      `json:"pred_items"`
	TableName string        `json:"table_name"`
	Correct   bool          `json:"correct"`
	ToolCalls []llm.ToolUse `json:"tool_calls,omitempty"`
	Steps     int           `json:"steps,omitempty"`
	LatencyMs int64         `json:"latency_ms"`
	Tokens    int           `json:"tokens"`
	Error     string        `json:"error,omitempty"`
}

// RunResult aggregates a whole evaluation run.
type RunResult struct {
	Examples           []ExampleResult `json:"examples"`
	DenotationAccuracy float64         `json:"denotation_accuracy"`
	Total              int             `json:"n"`
	Correct            int             `json:"correct"`
	MultiAnswerCount   int             `json:"multi_answer_count"`
	ErrorCount         int             `json:"error_count"`
	TotalLatencyMs     int64           `json:"total_latency_ms"`
	TotalTokens        int             `json:"total_tokens"`
}
