package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/perbu/videoqa/pkg/openaiclient"
	"github.com/perbu/videoqa/pkg/retry"
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	Retry       retry.Policy
}

// OpenAIGenerator answers through a chat completion endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	policy      retry.Policy
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	client, err := openaiclient.New(cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("answer generator: %w", err)
	}
	policy := cfg.Retry
	if policy.Retryable == nil {
		policy.Retryable = openaiclient.Transient
	}
	return &OpenAIGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		policy:      policy,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, question, groundingContext string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(question, groundingContext)},
		},
	}

	var resp openai.ChatCompletionResponse
	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		var err error
		resp, err = g.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
