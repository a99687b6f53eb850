package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var errEmptyChoices = errors.New("model returned no choices")

// OpenAIConfig selects the endpoint and model for one OpenAIClient.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	RequestTimeout  time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// OpenAIClient calls the chat completion API. Consecutive failures open a
// circuit breaker; while it is open calls fail immediately.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker[string]
	log     *zap.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, log *zap.Logger) *OpenAIClient {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oaCfg.BaseURL = base
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	oaCfg.HTTPClient = &http.Client{Timeout: timeout}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "llm-" + cfg.Model,
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("llm circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oaCfg),
		model:   cfg.Model,
		breaker: breaker,
		log:     log,
	}
}

// Generate sends the messages to the chat completion API and returns the
// first choice. Every failure is a *GenerationError.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	out, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, messages, opts)
	})
	if err != nil {
		return "", &GenerationError{Model: c.model, Err: err}
	}
	return out, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    oaMsgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyChoices
	}
	return resp.Choices[0].Message.Content, nil
}
