package wtq

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func testDataDir(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "WikiTableQuestions")
	writeFile(t, filepath.Join(root, "data", TestSplitFile),
		"id\tutterance\tcontext\ttargetValue\n"+
			"nu-0\twhich country topped the table?\tcsv/204-csv/590.csv\tItaly\n"+
			"nu-1\twhich cities are listed?\tcsv/204-csv/590.csv\tRome|Milan\n")
	writeFile(t, filepath.Join(root, "csv", "204-csv", "590.tsv"),
		"Rank\tCountry\tCity\n"+
			"1\tItaly\tRome\n"+
			"2\tItaly\tMilan\n"+
			"3\tFrance\tParis\n")
	return filepath.Join(root, "data")
}

func TestLoadTestSplit(t *testing.T) {
	t.Parallel()

	dataDir := testDataDir(t)
	rows, err := LoadTestSplit(dataDir)
	if err != nil {
		t.Fatalf("LoadTestSplit: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ID != "nu-0" || rows[0].TableName != "csv/204-csv/590.csv" {
		t.Fatalf("row 0: %+v", rows[0])
	}
	if len(rows[0].Answers) != 1 || rows[0].Answers[0] != "Italy" {
		t.Fatalf("row 0 answers: %v", rows[0].Answers)
	}
	if len(rows[1].Answers) != 2 || rows[1].Answers[1] != "Milan" {
		t.Fatalf("row 1 answers: %v", rows[1].Answers)
	}
}

func TestLoadTestSplitBadLine(t *testing.T) {
	t.Parallel()

	dataDir := filepath.Join(t.TempDir(), "data")
	writeFile(t, filepath.Join(dataDir, TestSplitFile),
		"id\tutterance\tcontext\ttargetValue\nbroken line without tabs\n")

	if _, err := LoadTestSplit(dataDir); err == nil {
		t.Fatalf("expected error for malformed line")
	}
}

func TestReadTable(t *testing.T) {
	t.Parallel()

	dataDir := testDataDir(t)
	rootDir := filepath.Dir(dataDir)

	tbl, err := ReadTable(rootDir, "csv/204-csv/590.csv")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if tbl.Name != "csv/204-csv/590.tsv" {
		t.Fatalf("name: got %q", tbl.Name)
	}
	if len(tbl.Header) != 3 || tbl.Header[1] != "Country" {
		t.Fatalf("header: %v", tbl.Header)
	}
	if len(tbl.Rows) != 3 || tbl.Rows[2][2] != "Paris" {
		t.Fatalf("rows: %v", tbl.Rows)
	}
}

func TestReadTableMissing(t *testing.T) {
	t.Parallel()

	dataDir := testDataDir(t)
	if _, err := ReadTable(filepath.Dir(dataDir), "csv/999-csv/1.csv"); err == nil {
		t.Fatalf("expected error for missing table")
	}
}

func TestLoadTestExamples(t *testing.T) {
	t.Parallel()

	dataDir := testDataDir(t)

	examples, err := LoadTestExamples(dataDir, 0)
	if err != nil {
		t.Fatalf("LoadTestExamples: %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("got %d examples, want 2", len(examples))
	}
	ex := examples[0]
	if ex.ID != "nu-0" || ex.Question != "which country topped the table?" {
		t.Fatalf("example 0: %+v", ex)
	}
	if len(ex.Table.Rows) != 3 {
		t.Fatalf("table rows: %d", len(ex.Table.Rows))
	}

	limited, err := LoadTestExamples(dataDir, 1)
	if err != nil {
		t.Fatalf("LoadTestExamples limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit: got %d examples, want 1", len(limited))
	}
}

func TestEnsureDataExtractsArchive(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	setupDir := filepath.Join(tmp, "setup")
	cacheDir := filepath.Join(tmp, ".cache")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("WikiTableQuestions/data/" + TestSplitFile)
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte("id\tutterance\tcontext\ttargetValue\n")); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	writeFile(t, filepath.Join(setupDir, ArchiveName), buf.String())

	dataDir, err := EnsureData(context.Background(), setupDir, cacheDir)
	if err != nil {
		t.Fatalf("EnsureData: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, TestSplitFile)); err != nil {
		t.Fatalf("extracted split missing: %v", err)
	}

	// Second call short-circuits on the extracted directory.
	again, err := EnsureData(context.Background(), setupDir, cacheDir)
	if err != nil {
		t.Fatalf("EnsureData again: %v", err)
	}
	if again != dataDir {
		t.Fatalf("got %q, want %q", again, dataDir)
	}
}

func TestExtractZipRejectsEscape(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("../escape.txt"); err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	zipPath := filepath.Join(tmp, "evil.zip")
	writeFile(t, zipPath, buf.String())

	if err := extractZip(zipPath, filepath.Join(tmp, "out")); err == nil {
		t.Fatalf("expected zip-slip rejection")
	}
}
