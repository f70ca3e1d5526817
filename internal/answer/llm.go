// Package answer generates grounded answers from retrieved document context.
package answer

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/unigpt/unigpt/internal/faults"
)

// LLM is a chat completion backend.
type LLM interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIClient calls an OpenAI-compatible chat completion endpoint. A custom
// base URL points it at compatible providers such as Groq.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// NewOpenAIClient creates a chat completion client. An empty baseURL uses the
// OpenAI API.
func NewOpenAIClient(apiKey, baseURL, model string, temperature float32, maxTokens int, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}
}

// Complete sends a single-turn chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", faults.Wrap(faults.Generation, err)
	}
	if len(resp.Choices) == 0 {
		return "", faults.New(faults.Generation, "completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
