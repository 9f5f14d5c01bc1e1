package ai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"flashfeed/internal/adapters/config"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

// ChatProvider is the minimal surface the analyzer needs from an LLM
// backend: one prompt in, one text blob out.
type ChatProvider interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// Ensure ArkProvider implements ChatProvider
var _ ChatProvider = (*ArkProvider)(nil)

// ArkProvider talks to an OpenAI-compatible chat endpoint (Volcano Ark
// by default) through the official SDK.
type ArkProvider struct {
	client  openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewArkProvider creates a new provider client
func NewArkProvider(cfg config.AIConfig) (*ArkProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "AI API key not configured")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	burst := cfg.RequestBurst
	if burst < 1 {
		burst = 1
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)

	return &ArkProvider{
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.ReqPerMinute/60.0), burst),
		log:     logger.Get().With("component", "ark_chat", "model", cfg.Model),
	}, nil
}

// Model returns the configured model id
func (p *ArkProvider) Model() string {
	return p.model
}

// Chat sends one completion request and returns the raw message content
func (p *ArkProvider) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", errors.Wrapf(errors.ErrRateLimitExceeded, "rate limiter wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.5),
	})
	if err != nil {
		return "", errors.Wrapf(errors.ErrUnavailable, "chat completion failed: %v", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.Wrap(errors.ErrUnavailable, "provider returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
