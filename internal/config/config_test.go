package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
model:
  provider: claude
  name: claude-sonnet-4-5-20250929
  temperature: 0.2
  max_tokens: 1024
program:
  mode: agent
  max_steps: 8
data:
  row_limit: 50
  test_limit: -1
evaluation:
  concurrency: 4
  timeout: 90s
output:
  dir: ./out
storage:
  type: sqlite
  path: data/runs.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model.Provider != "claude" || cfg.Model.MaxTokens != 1024 {
		t.Fatalf("model: %+v", cfg.Model)
	}
	if cfg.Model.APIKey != "test-key" {
		t.Fatalf("env override: got %q", cfg.Model.APIKey)
	}
	if cfg.Program.Mode != "agent" || cfg.Program.MaxSteps != 8 {
		t.Fatalf("program: %+v", cfg.Program)
	}
	if cfg.Data.RowLimit != 50 || cfg.Data.ColLimit != DefaultColLimit {
		t.Fatalf("data: %+v", cfg.Data)
	}
	if cfg.Data.TestLimit != -1 {
		t.Fatalf("test_limit: got %d", cfg.Data.TestLimit)
	}
	if cfg.Evaluation.Concurrency != 4 || cfg.Evaluation.Timeout != 90*time.Second {
		t.Fatalf("evaluation: %+v", cfg.Evaluation)
	}
	if cfg.Storage.Path != "data/runs.db" {
		t.Fatalf("storage: %+v", cfg.Storage)
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Model.Provider != "openai" {
		t.Fatalf("provider: %q", cfg.Model.Provider)
	}
	if cfg.Model.BaseURL != "http://localhost:11434/v1" {
		t.Fatalf("base_url: %q", cfg.Model.BaseURL)
	}
	if cfg.Data.RowLimit != DefaultRowLimit || cfg.Data.ColLimit != DefaultColLimit {
		t.Fatalf("data defaults: %+v", cfg.Data)
	}
	if cfg.Data.TestLimit != DefaultTestLimit {
		t.Fatalf("test_limit default: %d", cfg.Data.TestLimit)
	}
	if cfg.Program.Mode != "direct" || cfg.Program.MaxSteps != DefaultMaxSteps {
		t.Fatalf("program defaults: %+v", cfg.Program)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	applyDefaults(cfg)

	cfg.Model.Provider = "bogus"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unknown provider")
	}

	cfg.Model.Provider = "openai"
	cfg.Program.Mode = "mystery"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unknown mode")
	}

	if err := Validate(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
