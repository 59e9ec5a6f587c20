package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/truthgauge/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (m *MockProvider) Name() string  { return m.name }
func (m *MockProvider) Model() string { return "mock-model" }

func (m *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func noSynthSleep(t *testing.T) {
	t.Helper()
	orig := synthSleepFunc
	synthSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { synthSleepFunc = orig })
}

func TestNewSynthesizer_NilProvider(t *testing.T) {
	_, err := NewSynthesizer(nil, model.RetryConfig{})
	if !errors.Is(err, model.ErrMisconfigured) {
		t.Fatalf("Expected Misconfigured, got %v", err)
	}
}

func TestSynthesizer_Success(t *testing.T) {
	mock := &MockProvider{name: "mock", responses: []string{`{"isLikelyTrue": true}`}}
	s, err := NewSynthesizer(mock, model.RetryConfig{MaxAttempts: 3})
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}

	out, err := s.Synthesize(context.Background(), "the content", model.EvidenceSummary{}, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out != `{"isLikelyTrue": true}` {
		t.Errorf("Unexpected output: %s", out)
	}
	if mock.calls != 1 {
		t.Errorf("Expected 1 call, got %d", mock.calls)
	}
	if !strings.Contains(mock.prompts[0], "the content") {
		t.Error("prompt should contain the submitted text")
	}
	if s.ProviderName() != "mock" || s.Model() != "mock-model" {
		t.Errorf("Unexpected identity %s/%s", s.ProviderName(), s.Model())
	}
}

func TestSynthesizer_Available(t *testing.T) {
	up, _ := NewSynthesizer(&MockProvider{name: "mock", available: true}, model.RetryConfig{})
	if !up.Available(context.Background()) {
		t.Error("Expected available provider to be reported as available")
	}
	down, _ := NewSynthesizer(&MockProvider{name: "mock"}, model.RetryConfig{})
	if down.Available(context.Background()) {
		t.Error("Expected unavailable provider to be reported as unavailable")
	}
}

func TestSynthesizer_RetriesThenSucceeds(t *testing.T) {
	noSynthSleep(t)
	mock := &MockProvider{
		name:      "mock",
		errs:      []error{errors.New("503"), nil},
		responses: []string{"", "{}"},
	}
	s, _ := NewSynthesizer(mock, model.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second})

	out, err := s.Synthesize(context.Background(), "text", model.EvidenceSummary{}, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out != "{}" || mock.calls != 2 {
		t.Errorf("out=%q calls=%d", out, mock.calls)
	}
}

func TestSynthesizer_ExhaustedIsModelUnavailable(t *testing.T) {
	noSynthSleep(t)
	boom := errors.New("backend down")
	mock := &MockProvider{name: "mock", errs: []error{boom, boom, boom}}
	s, _ := NewSynthesizer(mock, model.RetryConfig{MaxAttempts: 3})

	_, err := s.Synthesize(context.Background(), "text", model.EvidenceSummary{}, nil)
	if !errors.Is(err, model.ErrModelUnavailable) {
		t.Fatalf("Expected ModelUnavailable, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("Expected cause to be preserved")
	}
	if mock.calls != 3 {
		t.Errorf("Expected 3 calls, got %d", mock.calls)
	}
}

func TestSynthesizer_PermanentErrorIsNotRetried(t *testing.T) {
	noSynthSleep(t)
	tests := []struct {
		name string
		err  error
	}{
		{"rejected key", &StatusError{Code: http.StatusUnauthorized, Message: "invalid x-api-key"}},
		{"bad request", fmt.Errorf("Anthropic API error: %w", &StatusError{Code: http.StatusBadRequest, Message: "bad model"})},
		{"openai auth", fmt.Errorf("OpenAI API error: %w", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "Incorrect API key"})},
		{"openai not found", &openai.RequestError{HTTPStatusCode: http.StatusNotFound}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockProvider{name: "mock", errs: []error{tt.err, tt.err, tt.err}, responses: []string{"", "", "{}"}}
			s, _ := NewSynthesizer(mock, model.RetryConfig{MaxAttempts: 3})

			_, err := s.Synthesize(context.Background(), "text", model.EvidenceSummary{}, nil)
			if !errors.Is(err, model.ErrModelUnavailable) {
				t.Fatalf("Expected ModelUnavailable, got %v", err)
			}
			if mock.calls != 1 {
				t.Errorf("Expected 1 call, got %d", mock.calls)
			}
		})
	}
}

func TestSynthesizer_TransientStatusIsRetried(t *testing.T) {
	noSynthSleep(t)
	for _, code := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusBadGateway} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			transient := &StatusError{Code: code, Message: "try later"}
			mock := &MockProvider{name: "mock", errs: []error{transient, transient, nil}, responses: []string{"", "", "{}"}}
			s, _ := NewSynthesizer(mock, model.RetryConfig{MaxAttempts: 3})

			out, err := s.Synthesize(context.Background(), "text", model.EvidenceSummary{}, nil)
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if out != "{}" || mock.calls != 3 {
				t.Errorf("out=%q calls=%d", out, mock.calls)
			}
		})
	}
}

func TestSynthesizer_CanceledContextIsTimeout(t *testing.T) {
	mock := &MockProvider{name: "mock", responses: []string{"{}"}}
	s, _ := NewSynthesizer(mock, model.RetryConfig{MaxAttempts: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Synthesize(ctx, "text", model.EvidenceSummary{}, nil)
	if !errors.Is(err, model.ErrTimeout) {
		t.Fatalf("Expected Timeout, got %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("Expected no calls, got %d", mock.calls)
	}
}
