// Package llm sends verification prompts to generative model backends.
package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/truthgauge/internal/model"
)

// Provider defines the interface for generative model backends.
// Generate returns the model's raw text; no schema is guaranteed.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Model returns the model identifier requests are sent to
	Model() string

	// Generate sends a single prompt and returns the raw completion
	Generate(ctx context.Context, prompt string) (string, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// StatusError is a non-200 reply from a provider's HTTP API
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Message)
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling; verdicts want low values
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "gemini",
		Model:       "gemini-2.0-flash-001",
		Timeout:     60,
		MaxTokens:   1500,
		Temperature: 0.2,
	}
}

// ConfigFromModel converts the application config into provider config
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:    llmConfig.Provider,
		Model:       llmConfig.Model,
		APIKey:      llmConfig.APIKey,
		BaseURL:     llmConfig.BaseURL,
		Timeout:     llmConfig.Timeout,
		MaxTokens:   llmConfig.MaxTokens,
		Temperature: llmConfig.Temperature,
		HTTPProxy:   httpConfig.HTTPProxy,
		HTTPSProxy:  httpConfig.HTTPSProxy,
		NoProxy:     httpConfig.NoProxy,
	}
}

const systemPrompt = "You verify the truthfulness of content against fact-check evidence. Answer with a single JSON object and nothing else."

func (c Config) timeoutOr(fallback int) int {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

func (c Config) maxTokensOr(fallback int) int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return fallback
}
