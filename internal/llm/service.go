package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/config"
	"github.com/lexiqai/assist-gateway/internal/observability"
	"github.com/lexiqai/assist-gateway/internal/resilience"
)

const (
	summarizeSystemPrompt = "You are a helpful assistant that summarizes text clearly, simply, and concisely. Make summaries easy to understand for dyslexic readers."
	summarizeUserPrompt   = "Please summarize the following text:\n\n%s"

	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
)

// ChatOptions tunes a chat request. Nil fields take the defaults.
type ChatOptions struct {
	MaxTokens   *int
	Temperature *float64
}

// Service is the summarization and chat capability
type Service struct {
	*capability.Lifecycle
	provider Provider
	guard    *resilience.Guard
	info     capability.Info
}

// NewService wraps provider. Initialization pings the provider when it
// supports it.
func NewService(provider Provider, guard *resilience.Guard, info capability.Info) *Service {
	s := &Service{provider: provider, guard: guard, info: info}
	s.Lifecycle = capability.NewLifecycle(capability.Summarization, s.setup).WithInitTimeout(guard.Timeout())
	return s
}

// NewDisabledService returns a service that rejects every call with reason
func NewDisabledService(reason string, info capability.Info) *Service {
	return &Service{
		Lifecycle: capability.NewDisabledLifecycle(capability.Summarization, reason),
		info:      info,
	}
}

// NewFromConfig selects the provider configured for summarization
func NewFromConfig(cfg *config.Config, guard *resilience.Guard) *Service {
	info := capability.Info{Provider: cfg.SummarizationProvider}
	if disabled, reason := cfg.Disabled(capability.Summarization); disabled {
		return NewDisabledService(reason, info)
	}

	switch cfg.SummarizationProvider {
	case "local":
		info.Model = cfg.LocalLLMModel
		info.Device = "local-pipeline"
		if cfg.LocalLLMURL == "" {
			return NewDisabledService("LOCAL_LLM_URL not configured", info)
		}
		return NewService(NewOpenAIChat("local", cfg.LocalLLMURL, cfg.LocalLLMModel, true), guard, info)
	case "openai":
		info.Model = cfg.OpenAIChatModel
		info.Device = "openai-api"
		if cfg.OpenAIAPIKey == "" {
			return NewDisabledService("OPENAI_API_KEY not configured", info)
		}
		return NewService(NewOpenAIChat(cfg.OpenAIAPIKey, "", cfg.OpenAIChatModel, false), guard, info)
	default:
		info.Model = cfg.GroqModel
		info.Device = "groq-api"
		if cfg.GroqAPIKey == "" {
			return NewDisabledService("GROQ_API_KEY not configured", info)
		}
		return NewService(NewOpenAIChat(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, false), guard, info)
	}
}

func (s *Service) setup(ctx context.Context) error {
	if p, ok := s.provider.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return capability.Unavailable(capability.Summarization, "failed to reach language model", err)
		}
	}
	return nil
}

// Info describes the configured provider
func (s *Service) Info() capability.Info {
	return s.info
}

// Summarize produces a reader-friendly summary of text
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", capability.Validation(capability.Summarization, "No text provided")
	}

	return s.complete(ctx, "summarization failed", CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: summarizeSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(summarizeUserPrompt, text)},
		},
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	})
}

// Chat continues a conversation
func (s *Service) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	req := CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	if opts.MaxTokens != nil {
		if *opts.MaxTokens <= 0 {
			return "", capability.Validation(capability.Summarization, "max_tokens must be positive")
		}
		req.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		if *opts.Temperature < 0 || *opts.Temperature > 2 {
			return "", capability.Validation(capability.Summarization, "temperature must be between 0 and 2")
		}
		req.Temperature = *opts.Temperature
	}

	return s.complete(ctx, "chat completion failed", req)
}

func (s *Service) complete(ctx context.Context, failure string, req CompletionRequest) (string, error) {
	if err := s.Initialize(ctx); err != nil {
		return "", err
	}

	var out string
	err := capability.Call(ctx, capability.Summarization, failure, s.guard, func(ctx context.Context) error {
		text, err := s.provider.Complete(ctx, req)
		if err != nil {
			return err
		}
		out = strings.TrimSpace(text)
		return nil
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", capability.ProviderFailure(capability.Summarization, failure, fmt.Errorf("model returned an empty completion"))
	}

	observability.LoggerFromContext(ctx).Debug().
		Int("messages", len(req.Messages)).
		Int("response_chars", len(out)).
		Msg("Completion finished")
	return out, nil
}

func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return capability.Validation(capability.Summarization, "No messages provided")
	}
	for i, m := range messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return capability.Validation(capability.Summarization, fmt.Sprintf("message %d has invalid role %q", i, m.Role))
		}
		if strings.TrimSpace(m.Content) == "" {
			return capability.Validation(capability.Summarization, fmt.Sprintf("message %d has empty content", i))
		}
	}
	return nil
}
