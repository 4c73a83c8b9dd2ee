package wtq

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ReadTable reads one normalized table from the dataset root (the directory
// containing csv/ and data/). Table names arrive from the split file as
// "csv/204-csv/590.csv"; the on-disk normalized form is tab-separated with
// a .tsv extension.
func ReadTable(rootDir, tableName string) (*Table, error) {
	normalized := strings.ReplaceAll(tableName, ".csv", ".tsv")

	relUnderCSV := strings.TrimPrefix(normalized, "csv/")
	candidates := []string{
		filepath.Join(rootDir, "csv", filepath.FromSlash(relUnderCSV)),
		filepath.Join(rootDir, filepath.FromSlash(normalized)),
		filepath.Join(rootDir, filepath.FromSlash(relUnderCSV)),
	}

	var path string
	for _, cand := range candidates {
		if _, err := os.Stat(cand); err == nil {
			path = cand
			break
		}
	}
	if path == "" {
		found, err := searchTable(filepath.Join(rootDir, "csv"), filepath.Base(relUnderCSV))
		if err != nil {
			return nil, fmt.Errorf("wtq: resolve table %q under %q: %w", tableName, rootDir, err)
		}
		path = found
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wtq: open table %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	t := &Table{Name: normalized}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for sc.Scan() {
		cells := splitTSVLine(sc.Text())
		if first {
			t.Header = cells
			first = false
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("wtq: read table %q: %w", path, err)
	}
	return t, nil
}

func splitTSVLine(line string) []string {
	parts := strings.Split(strings.TrimRight(line, "\n"), "\t")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
	}
	return out
}

func searchTable(csvDir, base string) (string, error) {
	var found string
	err := filepath.WalkDir(csvDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == base {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no file named %q", base)
	}
	return found, nil
}
