package wtq

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadTestSplit parses the test split TSV under dataDir. Answers with
// multiple gold values are pipe-separated inside the answer column.
func LoadTestSplit(dataDir string) ([]SplitRow, error) {
	path := filepath.Join(dataDir, TestSplitFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wtq: open test split %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var rows []SplitRow
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo == 1 {
			// Column header line.
			continue
		}
		line := strings.TrimRight(sc.Text(), "\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return nil, fmt.Errorf("wtq: %s line %d: want 4 columns, got %d", TestSplitFile, lineNo, len(fields))
		}
		rows = append(rows, SplitRow{
			ID:        fields[0],
			Question:  fields[1],
			TableName: fields[2],
			Answers:   strings.Split(fields[3], "|"),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("wtq: read test split: %w", err)
	}
	return rows, nil
}

// LoadTestExamples joins the test split with its tables. dataDir is the
// dataset data/ directory; tables live beside it under the dataset root.
// A limit <= 0 loads the full split.
func LoadTestExamples(dataDir string, limit int) ([]Example, error) {
	rows, err := LoadTestSplit(dataDir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	rootDir := filepath.Dir(dataDir)
	out := make([]Example, 0, len(rows))
	for _, r := range rows {
		t, err := ReadTable(rootDir, r.TableName)
		if err != nil {
			return nil, fmt.Errorf("wtq: example %s: %w", r.ID, err)
		}
		out = append(out, Example{
			ID:       r.ID,
			Question: r.Question,
			Answers:  r.Answers,
			Table:    *t,
		})
	}
	return out, nil
}
