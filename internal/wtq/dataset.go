// Package wtq downloads, extracts and loads the WikiTableQuestions dataset.
package wtq

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ArchiveURL is the upstream compact release archive.
	ArchiveURL = "https://github.com/ppasupat/WikiTableQuestions/releases/download/v1.0.2/WikiTableQuestions-1.0.2-compact.zip"

	// ArchiveName is the local filename of the release zip.
	ArchiveName = "WikiTableQuestions-1.0.2-compact.zip"

	// TestSplitFile holds the unseen-tables test split inside data/.
	TestSplitFile = "pristine-unseen-tables.tsv"
)

const downloadTimeout = 10 * time.Minute

// EnsureData makes the extracted dataset available under cacheDir and returns
// the path to its data/ directory. The archive is looked up in setupDir,
// downloaded when missing, and extracted once; subsequent calls are no-ops.
func EnsureData(ctx context.Context, setupDir, cacheDir string) (string, error) {
	dataDir := filepath.Join(cacheDir, "WikiTableQuestions", "data")
	if _, err := os.Stat(dataDir); err == nil {
		return dataDir, nil
	}

	zipPath := filepath.Join(setupDir, ArchiveName)
	if _, err := os.Stat(zipPath); err != nil {
		if err := DownloadArchive(ctx, zipPath); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("wtq: create cache dir: %w", err)
	}
	if err := extractZip(zipPath, cacheDir); err != nil {
		return "", err
	}

	if _, err := os.Stat(dataDir); err != nil {
		return "", fmt.Errorf("wtq: archive extracted but %q not found: %w", dataDir, err)
	}
	return dataDir, nil
}

// DownloadArchive streams the release zip to dst, creating parent
// directories as needed. A partial download never replaces dst.
func DownloadArchive(ctx context.Context, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("wtq: create setup dir: %w", err)
	}

	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, ArchiveURL, nil)
	if err != nil {
		return fmt.Errorf("wtq: build download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("wtq: download archive: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wtq: download archive: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".wtq-download-*")
	if err != nil {
		return fmt.Errorf("wtq: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("wtq: write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("wtq: close archive: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("wtq: move archive into place: %w", err)
	}
	return nil
}

func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("wtq: open archive %q: %w", zipPath, err)
	}
	defer func() { _ = r.Close() }()

	destAbs, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("wtq: resolve dest dir: %w", err)
	}

	for _, f := range r.File {
		target := filepath.Join(destAbs, filepath.FromSlash(f.Name))
		// Reject entries escaping the destination.
		if target != destAbs && !strings.HasPrefix(target, destAbs+string(os.PathSeparator)) {
			return fmt.Errorf("wtq: archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("wtq: create dir %q: %w", target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("wtq: create dir for %q: %w", target, err)
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("wtq: open archive entry %q: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("wtq: create %q: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("wtq: extract %q: %w", f.Name, err)
	}
	return out.Close()
}
