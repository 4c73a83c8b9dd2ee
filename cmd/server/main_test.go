package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stellarlinkco/wtq-eval/api"
	"github.com/stellarlinkco/wtq-eval/internal/config"
	"github.com/stellarlinkco/wtq-eval/internal/store"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf("storage:\n  type: sqlite\n  path: %s\n", filepath.Join(t.TempDir(), "wtq.db"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunMainStartsServer(t *testing.T) {
	t.Setenv("WTQ_EVAL_DISABLE_AUTH", "true")

	origRun := runServer
	defer func() { runServer = origRun }()

	var gotAddr string
	runServer = func(srv *api.Server, addr string) error {
		gotAddr = addr
		return nil
	}

	code := runMain([]string{"--config", writeConfig(t), "--addr", ":9999"})
	if code != 0 {
		t.Fatalf("exit code: %d", code)
	}
	if gotAddr != ":9999" {
		t.Fatalf("addr: %q", gotAddr)
	}
}

func TestRunMainBadConfig(t *testing.T) {
	var buf bytes.Buffer
	origStderr := stderrWriter
	stderrWriter = &buf
	defer func() { stderrWriter = origStderr }()

	code := runMain([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if code != 1 {
		t.Fatalf("exit code: %d", code)
	}
	if !strings.Contains(buf.String(), "config") {
		t.Fatalf("stderr: %q", buf.String())
	}
}

func TestRunMainBadFlag(t *testing.T) {
	var buf bytes.Buffer
	origStderr := stderrWriter
	stderrWriter = &buf
	defer func() { stderrWriter = origStderr }()

	if code := runMain([]string{"--nope"}); code != 2 {
		t.Fatalf("exit code: %d", code)
	}
}

func TestRunMainStoreError(t *testing.T) {
	origOpen := openStore
	defer func() { openStore = origOpen }()
	openStore = func(cfg *config.Config) (store.Store, error) {
		return nil, fmt.Errorf("store: boom")
	}

	var buf bytes.Buffer
	origStderr := stderrWriter
	stderrWriter = &buf
	defer func() { stderrWriter = origStderr }()

	if code := runMain([]string{"--config", writeConfig(t)}); code != 1 {
		t.Fatalf("exit code: %d", code)
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("stderr: %q", buf.String())
	}
}
