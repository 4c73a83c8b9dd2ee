package llm

import (
	"testing"

	"github.com/stellarlinkco/wtq-eval/internal/config"
)

func TestNewProviderFromConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		provider string
		wantName string
	}{
		{"openai", "openai"},
		{"ollama", "openai"},
		{"claude", "claude"},
		{"anthropic", "claude"},
		{"", "openai"},
	}

	for _, tc := range cases {
		cfg := &config.Config{}
		cfg.Model.Provider = tc.provider
		p, err := NewProviderFromConfig(cfg)
		if err != nil {
			t.Fatalf("provider %q: %v", tc.provider, err)
		}
		if p.Name() != tc.wantName {
			t.Errorf("provider %q: got %q, want %q", tc.provider, p.Name(), tc.wantName)
		}
	}
}

func TestNewProviderFromConfigUnknown(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Model.Provider = "mystery"
	if _, err := NewProviderFromConfig(cfg); err == nil {
		t.Fatalf("expected error for unknown provider")
	}

	if _, err := NewProviderFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
