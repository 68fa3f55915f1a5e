package llm

import (
	"context"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docsearch/internal/domain"
)

// OpenAICompatible talks to any server implementing the OpenAI chat
// completions API: OpenAI itself, Groq and Ollama.
type OpenAICompatible struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

func NewOpenAICompatible(cfg Config) *OpenAICompatible {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAICompatible{
		client:      openai.NewClientWithConfig(oc),
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
}

func (m *OpenAICompatible) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: wireTemperature(m.temperature),
		MaxTokens:   m.maxTokens,
	})
	if err != nil {
		return "", &domain.ModelError{Provider: m.provider, Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &domain.ModelError{Provider: m.provider, Err: errEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature keeps a zero temperature on the wire: the request field is
// omitempty, and an absent value means the server default (about 1.0).
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
