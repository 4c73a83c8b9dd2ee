package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fixtureConfig(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	tableDir := filepath.Join(root, "csv", "204-csv")
	for _, dir := range []string{dataDir, tableDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	split := "id\tutterance\tcontext\ttargetValue\n" +
		"nu-0\twhich country topped the table?\tcsv/204-csv/590.tsv\tItaly\n"
	if err := os.WriteFile(filepath.Join(dataDir, "pristine-unseen-tables.tsv"), []byte(split), 0o644); err != nil {
		t.Fatalf("write split: %v", err)
	}
	table := "Rank\tCountry\tCity\n1\tItaly\tRome\n"
	if err := os.WriteFile(filepath.Join(tableDir, "590.tsv"), []byte(table), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf("data:\n  data_dir: %s\n", dataDir)
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestPreviewCommand(t *testing.T) {
	t.Parallel()

	cfgPath := fixtureConfig(t)
	out, err := execute(t, "preview", "--config", cfgPath, "--limit", "1")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, "nu-0") || !strings.Contains(out, "which country topped the table?") {
		t.Fatalf("output: %q", out)
	}
	if !strings.Contains(out, "Gold: Italy") {
		t.Fatalf("output: %q", out)
	}
}

func TestPreviewCommandFull(t *testing.T) {
	t.Parallel()

	cfgPath := fixtureConfig(t)
	out, err := execute(t, "preview", "--config", cfgPath, "--limit", "1", "--full")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, "Header: Rank | Country | City") {
		t.Fatalf("serialized table missing: %q", out)
	}
}

func TestPreviewCommandBadLimit(t *testing.T) {
	t.Parallel()

	cfgPath := fixtureConfig(t)
	if _, err := execute(t, "preview", "--config", cfgPath, "--limit", "0"); err == nil {
		t.Fatalf("expected error")
	}
}
