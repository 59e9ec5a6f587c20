package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// GeminiProvider implements the Provider interface for Google Gemini models
type GeminiProvider struct {
	llm    llms.Model
	config Config
	model  string
}

// NewGeminiProvider creates a Gemini provider backed by langchaingo
func NewGeminiProvider(ctx context.Context, config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	modelName := config.Model
	if modelName == "" {
		modelName = "gemini-2.0-flash-001"
	}

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(config.APIKey),
		googleai.WithDefaultModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return newGeminiWithModel(client, config, modelName), nil
}

func newGeminiWithModel(m llms.Model, config Config, modelName string) *GeminiProvider {
	return &GeminiProvider{llm: m, config: config, model: modelName}
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the Gemini model in use
func (p *GeminiProvider) Model() string {
	return p.model
}

// IsAvailable sends a minimal prompt to confirm the key works
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	_, err := llms.GenerateFromSinglePrompt(ctx, p.llm, "Hi", llms.WithMaxTokens(5))
	if err != nil {
		slog.Warn("Gemini API check failed", "error", err)
		return false
	}
	return true
}

// Generate sends the prompt as a single user turn
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, time.Duration(p.config.timeoutOr(60))*time.Second)
	defer cancel()

	text, err := llms.GenerateFromSinglePrompt(ctxWithTimeout, p.llm, systemPrompt+"\n\n"+prompt,
		llms.WithModel(p.model),
		llms.WithMaxTokens(p.config.maxTokensOr(1500)),
		llms.WithTemperature(p.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return text, nil
}
