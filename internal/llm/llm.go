// Package llm adapts hosted chat-completion APIs to domain.LanguageModel.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"docsearch/internal/domain"
)

// Provider names accepted by New.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderEcho      = "echo"
)

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type defaults struct {
	model   string
	baseURL string
	needKey bool
}

var providerDefaults = map[string]defaults{
	ProviderGroq:      {model: "llama-3.3-70b-versatile", baseURL: "https://api.groq.com/openai/v1", needKey: true},
	ProviderOpenAI:    {model: "gpt-4o-mini", baseURL: "https://api.openai.com/v1", needKey: true},
	ProviderOllama:    {model: "llama3.2", baseURL: "http://localhost:11434/v1"},
	ProviderAnthropic: {model: "claude-3-5-haiku-latest", needKey: true},
	ProviderGemini:    {model: "gemini-2.0-flash", needKey: true},
	ProviderEcho:      {},
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	return providerDefaults[strings.ToLower(provider)].model
}

// DefaultMaxTokens caps completions for providers that require a limit.
const DefaultMaxTokens = 1024

// ErrMissingAPIKey is returned when a hosted provider has no key.
var ErrMissingAPIKey = errors.New("api key not set")

// New builds the language model for cfg.Provider, filling unset fields with
// provider defaults.
func New(ctx context.Context, cfg Config, logger arbor.ILogger) (domain.LanguageModel, error) {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = ProviderGroq
	}
	d, ok := providerDefaults[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if cfg.Model == "" {
		cfg.Model = d.model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.baseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if d.needKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}

	var (
		model domain.LanguageModel
		err   error
	)
	switch cfg.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderOllama:
		model = NewOpenAICompatible(cfg)
	case ProviderAnthropic:
		model = NewAnthropic(cfg)
	case ProviderGemini:
		model, err = NewGemini(ctx, cfg)
	case ProviderEcho:
		model = Echo{}
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Dur("timeout", cfg.Timeout).
		Msg("Language model initialized")
	return model, nil
}

// withTimeout bounds one request when a timeout is configured.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

var errEmptyResponse = errors.New("no text in response")

// Echo returns the prompt unchanged. It needs no network and backs the
// "echo" provider used for offline runs and tests.
type Echo struct{}

func (Echo) Complete(_ context.Context, prompt string) (string, error) {
	return prompt, nil
}

// Func adapts a function to domain.LanguageModel.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
