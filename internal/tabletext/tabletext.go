// Package tabletext renders WTQ tables as compact prompt text.
package tabletext

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/wtq-eval/internal/wtq"
)

// Serialize renders the table for inclusion in a prompt. Rows beyond
// rowLimit and columns beyond colLimit are cut, with marker lines noting
// the truncation so the model is not misled about table size.
func Serialize(t *wtq.Table, rowLimit, colLimit int) string {
	if t == nil {
		return ""
	}
	if rowLimit <= 0 {
		rowLimit = len(t.Rows)
	}
	if colLimit <= 0 {
		colLimit = len(t.Header)
	}

	name := t.Name
	if name == "" {
		name = "table"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Table: %s\n", name)
	sb.WriteString("Header: " + strings.Join(truncCols(t.Header, colLimit), " | "))

	shown := t.Rows
	if len(shown) > rowLimit {
		shown = shown[:rowLimit]
	}
	colsCut := len(t.Header) > colLimit
	for _, r := range shown {
		if len(r) > colLimit {
			colsCut = true
		}
		sb.WriteString("\nRow: " + strings.Join(truncCols(r, colLimit), " | "))
	}

	if extra := len(t.Rows) - rowLimit; extra > 0 {
		fmt.Fprintf(&sb, "\n... (%d more rows truncated)", extra)
	}
	if colsCut {
		fmt.Fprintf(&sb, "\n... (columns truncated to first %d)", colLimit)
	}
	return sb.String()
}

// Preview renders a short human-readable summary for CLI output.
func Preview(t *wtq.Table, n int) string {
	if t == nil {
		return ""
	}
	if n < 0 {
		n = 0
	}

	shown := t.Rows
	if len(shown) > n {
		shown = shown[:n]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Header (%d cols): %v\n", len(t.Header), t.Header)
	fmt.Fprintf(&sb, "Rows: %d total; showing first %d", len(t.Rows), len(shown))
	for _, r := range shown {
		fmt.Fprintf(&sb, "\n  %v", r)
	}
	return sb.String()
}

// SampleRows renders the first n data rows as pipe-joined lines, one row
// per line, for the agent's sampling tool.
func SampleRows(t *wtq.Table, n int) string {
	if t == nil || n <= 0 {
		return ""
	}
	shown := t.Rows
	if len(shown) > n {
		shown = shown[:n]
	}
	lines := make([]string, 0, len(shown))
	for _, r := range shown {
		lines = append(lines, strings.Join(r, " | "))
	}
	return strings.Join(lines, "\n")
}

func truncCols(cells []string, limit int) []string {
	if len(cells) > limit {
		cells = cells[:limit]
	}
	return cells
}
