// Package config loads harness configuration from YAML with env overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

// Defaults mirroring the harness's usual smoke-test settings.
const (
	DefaultRowLimit   = 30
	DefaultColLimit   = 10
	DefaultTestLimit  = 200
	DefaultMaxSteps   = 5
	DefaultMaxTokens  = 512
	DefaultSampleRows = 5
)

type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Program    ProgramConfig    `yaml:"program"`
	Data       DataConfig       `yaml:"data"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Output     OutputConfig     `yaml:"output"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ModelConfig selects and parameterizes the LLM provider. Provider "openai"
// with a local base_url is the Ollama path (its OpenAI-compatible endpoint).
type ModelConfig struct {
	Provider    string  `yaml:"provider,omitempty"` // "openai" or "claude"
	Name        string  `yaml:"name,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// ProgramConfig picks how questions are asked.
type ProgramConfig struct {
	Mode       string `yaml:"mode,omitempty"` // "direct" or "agent"
	UseCoT     bool   `yaml:"use_cot,omitempty"`
	MaxSteps   int    `yaml:"max_steps,omitempty"`
	SampleRows int    `yaml:"sample_rows,omitempty"`
}

type DataConfig struct {
	DataDir   string `yaml:"data_dir,omitempty"` // explicit extracted data/ dir
	SetupDir  string `yaml:"setup_dir,omitempty"`
	CacheDir  string `yaml:"cache_dir,omitempty"`
	RowLimit  int    `yaml:"row_limit,omitempty"`
	ColLimit  int    `yaml:"col_limit,omitempty"`
	TestLimit int    `yaml:"test_limit,omitempty"` // <0 means full split
}

type EvaluationConfig struct {
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// UnmarshalYAML accepts timeout as a duration string ("90s", "2m").
func (e *EvaluationConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Concurrency int    `yaml:"concurrency"`
		Timeout     string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	e.Concurrency = raw.Concurrency
	if s := strings.TrimSpace(raw.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("evaluation.timeout: %w", err)
		}
		e.Timeout = d
	}
	return nil
}

type OutputConfig struct {
	Dir    string `yaml:"dir,omitempty"`
	Format string `yaml:"format,omitempty"` // "table" or "json"
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"`
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Model.Provider) == "" {
		cfg.Model.Provider = "openai"
	}
	if strings.TrimSpace(cfg.Model.Name) == "" {
		cfg.Model.Name = "gemma3:4b"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Model.Provider)) {
	case "openai", "ollama":
		if strings.TrimSpace(cfg.Model.BaseURL) == "" {
			cfg.Model.BaseURL = "http://localhost:11434/v1"
		}
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 0.1
	}
	if cfg.Model.MaxTokens <= 0 {
		cfg.Model.MaxTokens = DefaultMaxTokens
	}

	if strings.TrimSpace(cfg.Program.Mode) == "" {
		cfg.Program.Mode = "direct"
	}
	if cfg.Program.MaxSteps <= 0 {
		cfg.Program.MaxSteps = DefaultMaxSteps
	}
	if cfg.Program.SampleRows <= 0 {
		cfg.Program.SampleRows = DefaultSampleRows
	}

	if strings.TrimSpace(cfg.Data.SetupDir) == "" {
		cfg.Data.SetupDir = "setup"
	}
	if strings.TrimSpace(cfg.Data.CacheDir) == "" {
		cfg.Data.CacheDir = ".cache"
	}
	if cfg.Data.RowLimit <= 0 {
		cfg.Data.RowLimit = DefaultRowLimit
	}
	if cfg.Data.ColLimit <= 0 {
		cfg.Data.ColLimit = DefaultColLimit
	}
	if cfg.Data.TestLimit == 0 {
		cfg.Data.TestLimit = DefaultTestLimit
	}

	if cfg.Evaluation.Concurrency <= 0 {
		cfg.Evaluation.Concurrency = 1
	}

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = "outputs"
	}
	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = "table"
	}
}

func applyEnv(cfg *Config) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Model.Provider))
	switch provider {
	case "claude", "anthropic":
		if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
			cfg.Model.APIKey = v
		} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
			cfg.Model.APIKey = v
		}
	case "openai", "ollama":
		if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
			cfg.Model.APIKey = v
		}
	}
}

// Validate rejects configurations the run pipeline cannot work with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Model.Provider)) {
	case "openai", "ollama", "claude", "anthropic":
	default:
		return fmt.Errorf("config: unknown provider %q", cfg.Model.Provider)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Program.Mode)) {
	case "direct", "agent":
	default:
		return fmt.Errorf("config: unknown program mode %q", cfg.Program.Mode)
	}
	if cfg.Model.Temperature < 0 {
		return fmt.Errorf("config: temperature must be >= 0")
	}
	return nil
}
