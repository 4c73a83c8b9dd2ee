package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/wtq-eval/internal/config"
)

// NewProviderFromConfig builds the provider the model section selects.
func NewProviderFromConfig(cfg *config.Config) (ToolLoopProvider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	m := cfg.Model
	switch strings.ToLower(strings.TrimSpace(m.Provider)) {
	case "", "openai", "ollama":
		return NewOpenAIProvider(m.APIKey, m.BaseURL, m.Name), nil
	case "claude", "anthropic":
		return NewClaudeProvider(m.APIKey, m.BaseURL, m.Name), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", m.Provider)
	}
}
