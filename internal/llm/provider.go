package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-neutral chat completion request
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Provider produces chat completions
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Pinger is implemented by providers that can verify they are reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpenAIChat talks to any OpenAI-compatible chat completions endpoint:
// Groq, a local text-generation pipeline or OpenAI itself.
type OpenAIChat struct {
	client *openai.Client
	model  string
	ping   bool
}

// NewOpenAIChat creates a chat provider. baseURL may be empty for OpenAI.
// When ping is set, Ping lists the models served by the endpoint.
func NewOpenAIChat(apiKey, baseURL, model string, ping bool) *OpenAIChat {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIChat{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		ping:   ping,
	}
}

// Complete sends the conversation and returns the first choice
func (c *OpenAIChat) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping verifies the endpoint answers, when enabled
func (c *OpenAIChat) Ping(ctx context.Context) error {
	if !c.ping {
		return nil
	}
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("model endpoint not reachable: %w", err)
	}
	return nil
}
