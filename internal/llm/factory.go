package llm

import (
	"context"
	"strings"

	"github.com/ppiankov/truthgauge/internal/model"
)

// NewProvider creates a new LLM provider based on configuration.
// Construction failures are configuration errors.
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(config.Provider) {
	case "openai":
		provider, err = NewOpenAIProvider(config)

	case "anthropic", "claude":
		provider, err = NewAnthropicProvider(config)

	case "ollama":
		provider, err = NewOllamaProvider(config)

	case "gemini":
		provider, err = NewGeminiProvider(ctx, config)

	case "":
		return nil, model.NewError(model.KindMisconfigured, "no LLM provider configured", nil)

	default:
		return nil, model.NewError(model.KindMisconfigured,
			"unknown LLM provider: "+config.Provider+" (supported: openai, anthropic, ollama, gemini)", nil)
	}

	if err != nil {
		return nil, model.NewError(model.KindMisconfigured, "create "+config.Provider+" provider", err)
	}
	return provider, nil
}
