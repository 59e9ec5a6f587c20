package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"

	"github.com/ppiankov/truthgauge/internal/metrics"
	"github.com/ppiankov/truthgauge/internal/model"
)

// synthSleepFunc is replaced in tests to skip backoff delays
var synthSleepFunc = time.Sleep

// Synthesizer asks a generative model for a structured verdict.
// It returns the model's raw text; shaping it is the normalizer's job.
type Synthesizer struct {
	provider    Provider
	maxAttempts int
	baseDelay   time.Duration
}

// NewSynthesizer wraps provider with bounded retries
func NewSynthesizer(provider Provider, retry model.RetryConfig) (*Synthesizer, error) {
	if provider == nil {
		return nil, model.NewError(model.KindMisconfigured, "no LLM provider configured", nil)
	}

	maxAttempts := retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Synthesizer{
		provider:    provider,
		maxAttempts: maxAttempts,
		baseDelay:   retry.BaseDelay,
	}, nil
}

// ProviderName returns the backing provider's name
func (s *Synthesizer) ProviderName() string {
	return s.provider.Name()
}

// Model returns the backing model identifier
func (s *Synthesizer) Model() string {
	return s.provider.Model()
}

// Available reports whether the backing provider answers with the configured credentials
func (s *Synthesizer) Available(ctx context.Context) bool {
	return s.provider.IsAvailable(ctx)
}

// Synthesize builds the prompt and returns the raw model output.
// Transient backend errors are retried with exponential backoff. Every
// failure surfaces as ModelUnavailable.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, summary model.EvidenceSummary, claims []model.Claim) (string, error) {
	prompt := BuildPrompt(text, summary, claims)

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := model.ContextError(ctx, "synthesis"); err != nil {
			return "", err
		}

		raw, err := s.provider.Generate(ctx, prompt)
		if err == nil {
			metrics.UpstreamRequests.WithLabelValues(s.provider.Name(), "ok").Inc()
			return raw, nil
		}
		metrics.UpstreamRequests.WithLabelValues(s.provider.Name(), "error").Inc()
		lastErr = err

		if ctxErr := model.ContextError(ctx, "synthesis"); ctxErr != nil {
			return "", ctxErr
		}
		if !isRetryableModelError(err) {
			slog.Warn("model request failed permanently",
				"provider", s.provider.Name(), "attempt", attempt, "error", err)
			break
		}
		if attempt < s.maxAttempts {
			delay := s.baseDelay * time.Duration(1<<(attempt-1))
			slog.Warn("model request failed, retrying",
				"provider", s.provider.Name(), "attempt", attempt, "delay", delay, "error", err)
			synthSleepFunc(delay)
		}
	}

	return "", model.NewError(model.KindModelUnavailable, s.provider.Name()+" request failed", lastErr)
}

// isRetryableModelError reports whether a failed Generate may succeed on a
// later attempt. Client errors other than 408 and 429 are permanent.
// Transport errors and empty replies carry no status and are retried.
func isRetryableModelError(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
	}
	return true
}

// statusCode extracts the HTTP status carried by a provider error, or 0
func statusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}
