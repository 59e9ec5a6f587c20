package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete runtime configuration. It is built once by the CLI
// (defaults, config file, env, flags) and passed explicitly to constructors.
type Config struct {
	FactCheck    FactCheckConfig   `mapstructure:"factcheck" yaml:"factcheck"`
	OCR          OCRConfig         `mapstructure:"ocr" yaml:"ocr"`
	LLM          LLMConfig         `mapstructure:"llm" yaml:"llm"`
	HTTP         HTTPConfig        `mapstructure:"http" yaml:"http"`
	Cache        CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Concurrency  ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	RateLimiting RateLimitConfig   `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Timeouts     TimeoutConfig     `mapstructure:"timeouts" yaml:"timeouts"`
	Retry        RetryConfig       `mapstructure:"retry" yaml:"retry"`
	Store        StoreConfig       `mapstructure:"store" yaml:"store"`
	Server       ServerConfig      `mapstructure:"server" yaml:"server"`
	Output       OutputConfig      `mapstructure:"output" yaml:"output"`
	Log          LogConfig         `mapstructure:"log" yaml:"log"`
}

// FactCheckConfig configures the claims index client
type FactCheckConfig struct {
	APIKey       string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"` // Override for tests/proxies
	LanguageCode string `mapstructure:"language_code" yaml:"language_code,omitempty"`                 // e.g. "en-US"; empty = all
	PageSize     int    `mapstructure:"page_size" yaml:"page_size" validate:"gte=1,lte=100"`
	SplitClaims  bool   `mapstructure:"split_claims" yaml:"split_claims"` // Query per extracted claim instead of the full text
	MaxClaims    int    `mapstructure:"max_claims" yaml:"max_claims" validate:"gte=1"`
}

// OCRConfig configures the image text recognition backend
type OCRConfig struct {
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Language string `mapstructure:"language" yaml:"language" validate:"required"`
}

// LLMConfig configures the verdict synthesizer backend
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider" validate:"required,oneof=openai anthropic claude ollama gemini"`
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout     int     `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"` // seconds
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
}

// HTTPConfig configures outbound page fetching
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent" validate:"required"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes" validate:"gt=0"`
	InsecureTLS   bool          `mapstructure:"insecure_tls" yaml:"insecure_tls"`
	RespectRobots bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
	HTTPProxy     string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy    string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy       string        `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// CacheConfig configures the evidence response cache
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Backend       string        `mapstructure:"backend" yaml:"backend" validate:"oneof=memory disk layered redis"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Dir           string        `mapstructure:"dir" yaml:"dir,omitempty"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty" validate:"required_if=Backend redis"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers        int `mapstructure:"workers" yaml:"workers" validate:"gte=1"`                 // Batch analyses in flight
	EvidenceFanout int `mapstructure:"evidence_fanout" yaml:"evidence_fanout" validate:"gte=1"` // Concurrent evidence queries per analysis
}

// RateLimitConfig limits outbound requests per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size" validate:"gte=1"`
}

// TimeoutConfig bounds each I/O stage; zero disables the stage bound
type TimeoutConfig struct {
	Extract   time.Duration `mapstructure:"extract" yaml:"extract"`
	Evidence  time.Duration `mapstructure:"evidence" yaml:"evidence"`
	Synthesis time.Duration `mapstructure:"synthesis" yaml:"synthesis"`
}

// RetryConfig bounds retries of upstream services
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
}

// StoreConfig configures the SQLite persistence adapter
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" validate:"required_if=Enabled true"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address        string `mapstructure:"address" yaml:"address" validate:"required"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes" validate:"gt=0"`
}

// OutputConfig controls CLI rendering
type OutputConfig struct {
	Verbose       bool `mapstructure:"verbose" yaml:"verbose"`
	IncludeFooter bool `mapstructure:"include_footer" yaml:"include_footer"`
}

// LogConfig controls slog output
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		FactCheck: FactCheckConfig{
			PageSize:  10,
			MaxClaims: 5,
		},
		OCR: OCRConfig{
			BaseURL:  "https://api.ocr.space/parse/image",
			Language: "eng",
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash-001",
			Timeout:     60,
			MaxTokens:   1500,
			Temperature: 0.2,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "truthgauge/0.3 (+https://github.com/ppiankov/truthgauge)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			TTL:     6 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:        4,
			EvidenceFanout: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Timeouts: TimeoutConfig{
			Extract:   60 * time.Second,
			Evidence:  30 * time.Second,
			Synthesis: 90 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
		Store: StoreConfig{
			Path: "truthgauge.db",
		},
		Server: ServerConfig{
			Address:        ":8080",
			MaxUploadBytes: 10 << 20,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var configValidate = validator.New()

// Validate checks the configuration once at assembly time.
// Failures are reported as Misconfigured.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return NewError(KindMisconfigured, "invalid configuration: "+strings.Join(fields, ", "), nil)
		}
		return NewError(KindMisconfigured, "invalid configuration", err)
	}
	return nil
}
