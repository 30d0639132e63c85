// Package factory builds an llm.Provider from configuration.
package factory

import (
	"fmt"

	"github.com/newthinker/prism/internal/config"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/llm"
	"github.com/newthinker/prism/internal/llm/claude"
	"github.com/newthinker/prism/internal/llm/openai"
)

// New creates an LLM provider based on configuration. An empty provider
// means no LLM is configured and returns (nil, nil).
func New(cfg config.LLMConfig) (llm.Provider, error) {
	var (
		p   llm.Provider
		err error
	)
	switch cfg.Provider {
	case "":
		return nil, nil
	case "claude":
		p, err = claude.New(cfg.Claude.APIKey, cfg.Claude.Model, cfg.Claude.BaseURL)
	case "openai":
		p, err = openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case "ollama":
		p, err = openai.NewOllama(cfg.Ollama.Endpoint, cfg.Ollama.Model)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown LLM provider: %s", cfg.Provider))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("%s: %w", cfg.Provider, err))
	}
	return p, nil
}
