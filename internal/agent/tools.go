package agent

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/wtq-eval/internal/llm"
	"github.com/stellarlinkco/wtq-eval/internal/tabletext"
	"github.com/stellarlinkco/wtq-eval/internal/wtq"
)

// Tool names exposed to the model.
const (
	ToolGetHeaders    = "get_table_headers"
	ToolGetRowCount   = "get_row_count"
	ToolGetSampleRows = "get_sample_rows"
)

// TableTools answers tool calls from the current example's table.
type TableTools struct {
	table     *wtq.Table
	sampleCap int
}

// NewTableTools wraps a table for tool execution. sampleCap bounds how many
// rows get_sample_rows may return at once.
func NewTableTools(table *wtq.Table, sampleCap int) *TableTools {
	if sampleCap <= 0 {
		sampleCap = 50
	}
	return &TableTools{table: table, sampleCap: sampleCap}
}

// Definitions lists the tool schemas sent with the request.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolGetHeaders,
			Description: "Return the column headers of the table, pipe-separated.",
			InputSchema: map[string]any{"type": "object"},
		},
		{
			Name:        ToolGetRowCount,
			Description: "Return the total number of data rows in the table.",
			InputSchema: map[string]any{"type": "object"},
		},
		{
			Name:        ToolGetSampleRows,
			Description: "Return the first n data rows of the table, one row per line.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"n": map[string]any{
						"type":        "integer",
						"description": "How many rows to return from the top of the table.",
					},
				},
			},
		},
	}
}

// Execute dispatches one tool call against the table.
func (t *TableTools) Execute(call llm.ToolUse) (string, error) {
	if t == nil || t.table == nil {
		return "", fmt.Errorf("agent: no table loaded")
	}

	switch call.Name {
	case ToolGetHeaders:
		return strings.Join(t.table.Header, " | "), nil
	case ToolGetRowCount:
		return fmt.Sprintf("%d", len(t.table.Rows)), nil
	case ToolGetSampleRows:
		n := intArg(call.Input, "n", 5)
		if n < 1 {
			n = 1
		}
		if n > t.sampleCap {
			n = t.sampleCap
		}
		return tabletext.SampleRows(t.table, n), nil
	default:
		return "", fmt.Errorf("agent: unknown tool %q", call.Name)
	}
}

func intArg(input map[string]any, key string, fallback int) int {
	v, ok := input[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return fallback
	}
}
