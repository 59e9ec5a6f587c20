package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/truthgauge/internal/model"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_FACT_CHECK_API_KEY", "OCR_SPACE_API_KEY", "OPENAI_API_KEY",
		"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OLLAMA_BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestConfigKeys(t *testing.T) {
	keys := configKeys(reflect.TypeOf(model.Config{}), "")

	want := []string{"factcheck.api_key", "llm.provider", "timeouts.synthesis", "cache.redis_addr", "log.format"}
	for _, w := range want {
		found := false
		for _, k := range keys {
			if k == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("configKeys missing %q", w)
		}
	}
	for _, k := range keys {
		if k == "timeouts" || k == "llm" {
			t.Errorf("configKeys should list leaves only, got %q", k)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearCredentialEnv(t)
	v := viper.New()
	configureEnv(v)

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, model.DefaultConfig()) {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("TRUTHGAUGE_LLM_PROVIDER", "openai")
	t.Setenv("TRUTHGAUGE_TIMEOUTS_SYNTHESIS", "5s")
	t.Setenv("TRUTHGAUGE_CONCURRENCY_WORKERS", "9")
	t.Setenv("TRUTHGAUGE_FACTCHECK_SPLIT_CLAIMS", "true")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_FACT_CHECK_API_KEY", "fc-test")

	v := viper.New()
	configureEnv(v)

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.APIKey != "sk-test" {
		t.Errorf("unexpected LLM config: %+v", cfg.LLM)
	}
	if cfg.Timeouts.Synthesis != 5*time.Second {
		t.Errorf("expected 5s synthesis timeout, got %v", cfg.Timeouts.Synthesis)
	}
	if cfg.Concurrency.Workers != 9 || !cfg.FactCheck.SplitClaims {
		t.Errorf("unexpected overrides: %+v %+v", cfg.Concurrency, cfg.FactCheck)
	}
	if cfg.FactCheck.APIKey != "fc-test" {
		t.Errorf("expected fact-check key from env, got %q", cfg.FactCheck.APIKey)
	}
	if cfg.Timeouts.Evidence != model.DefaultConfig().Timeouts.Evidence {
		t.Error("untouched keys should keep their defaults")
	}
}

func TestLoadConfig_ExplicitKeyBeatsProviderEnv(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("TRUTHGAUGE_LLM_API_KEY", "explicit")
	t.Setenv("GEMINI_API_KEY", "conventional")

	v := viper.New()
	configureEnv(v)

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LLM.APIKey != "explicit" {
		t.Errorf("expected explicit key, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadConfig_OllamaBaseURL(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("TRUTHGAUGE_LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")

	v := viper.New()
	configureEnv(v)

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("unexpected base URL %q", cfg.LLM.BaseURL)
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	clearCredentialEnv(t)
	path := filepath.Join(t.TempDir(), ".truthgauge", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when the file already exists")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, model.DefaultConfig()) {
		t.Errorf("round trip changed configuration:\n%+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	clearCredentialEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
timeouts:
  evidence: 12s
store:
  enabled: true
  path: /tmp/tg.db
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	v := viper.New()
	configureEnv(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey != "sk-ant" || cfg.LLM.Model != "claude-3-5-haiku-latest" {
		t.Errorf("unexpected LLM config: %+v", cfg.LLM)
	}
	if cfg.Timeouts.Evidence != 12*time.Second || !cfg.Store.Enabled || cfg.Store.Path != "/tmp/tg.db" {
		t.Errorf("unexpected config: %+v %+v", cfg.Timeouts, cfg.Store)
	}
}

func TestRedacted(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "secret"
	cfg.FactCheck.APIKey = "secret"

	r := redacted(cfg)
	if r.LLM.APIKey != "********" || r.FactCheck.APIKey != "********" || r.OCR.APIKey != "" {
		t.Errorf("unexpected redaction: %+v", r)
	}
	if cfg.LLM.APIKey != "secret" {
		t.Error("redacted must not modify the original")
	}

	var b strings.Builder
	if err := writeConfigSummary(&b, cfg); err != nil {
		t.Fatalf("writeConfigSummary: %v", err)
	}
	if strings.Contains(b.String(), "secret") {
		t.Error("summary leaked a credential")
	}
}

func resetInputFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		inputFile, inputType, inputURL = "", "", ""
	})
}

func TestBuildInput(t *testing.T) {
	resetInputFlags(t)

	input, err := buildInput([]string{"The moon is cheese"}, nil)
	if err != nil || input.Kind != model.InputText || input.Text != "The moon is cheese" {
		t.Errorf("text: %+v %v", input, err)
	}

	input, err = buildInput([]string{"-"}, strings.NewReader("from stdin\n"))
	if err != nil || input.Text != "from stdin\n" {
		t.Errorf("stdin: %+v %v", input, err)
	}

	inputURL = "https://example.com"
	input, err = buildInput(nil, nil)
	if err != nil || input.Kind != model.InputURL {
		t.Errorf("url: %+v %v", input, err)
	}

	if _, err := buildInput([]string{"text"}, nil); err == nil {
		t.Error("expected error for text and --url together")
	}
	inputURL = ""

	if _, err := buildInput(nil, nil); err == nil {
		t.Error("expected error without any input")
	}
}

func TestBuildInput_File(t *testing.T) {
	resetInputFlags(t)

	path := filepath.Join(t.TempDir(), "scan.JPG")
	if err := os.WriteFile(path, []byte{0xff, 0xd8}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	inputFile = path
	input, err := buildInput(nil, nil)
	if err != nil {
		t.Fatalf("buildInput: %v", err)
	}
	if input.Kind != model.InputFile || input.MediaType != "image/jpeg" || input.Filename != "scan.JPG" {
		t.Errorf("unexpected input: %+v", input)
	}

	inputType = "image/png"
	input, err = buildInput(nil, nil)
	if err != nil || input.MediaType != "image/png" {
		t.Errorf("declared type should win: %+v %v", input, err)
	}

	inputFile = filepath.Join(t.TempDir(), "missing.pdf")
	if _, err := buildInput(nil, nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a/b?c=d", "example.com_a_b_c=d"},
		{"@docs/report.pdf", "docs_report.pdf"},
		{"The sky is green", "The-sky-is-green"},
		{"   ", "input"},
		{strings.Repeat("a", 100), strings.Repeat("a", 60)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := reportName(0, "hello world"); got != "001-hello-world" {
		t.Errorf("reportName = %q", got)
	}
}

func TestSuccessLine(t *testing.T) {
	tests := []struct {
		result model.AnalysisResult
		want   string
	}{
		{model.AnalysisResult{IsLikelyTrue: true, Confidence: 0.85}, "✓ claim (likely true, 85.0%)"},
		{model.AnalysisResult{IsLikelyTrue: false, Confidence: 0.125}, "✓ claim (likely false, 12.5%)"},
		{model.AnalysisResult{IsLikelyTrue: true, Confidence: 1}, "✓ claim (likely true, 100.0%)"},
	}
	for _, tt := range tests {
		if got := successLine("claim", tt.result); got != tt.want {
			t.Errorf("successLine(%+v) = %q, want %q", tt.result, got, tt.want)
		}
	}
}

func TestNewLogHandler(t *testing.T) {
	if _, err := newLogHandler("debug", "json"); err != nil {
		t.Errorf("json handler: %v", err)
	}
	if _, err := newLogHandler("info", ""); err != nil {
		t.Errorf("text handler: %v", err)
	}
	if _, err := newLogHandler("loud", "text"); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := newLogHandler("info", "xml"); err == nil {
		t.Error("expected error for invalid format")
	}
}
