package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/perbu/videoqa/pkg/openaiclient"
	"github.com/perbu/videoqa/pkg/retry"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration // Per request; zero means no extra timeout
	Retry   retry.Policy
}

// OpenAIEmbedder uses OpenAI API for embeddings
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	dim     int
	timeout time.Duration
	policy  retry.Policy
}

// NewOpenAIEmbedder creates an OpenAI embedder
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	client, err := openaiclient.New(cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	// Set dimension based on model
	dim := 1536 // default for text-embedding-3-small
	if cfg.Model == string(openai.LargeEmbedding3) {
		dim = 3072
	}

	policy := cfg.Retry
	if policy.Retryable == nil {
		policy.Retryable = openaiclient.Transient
	}

	return &OpenAIEmbedder{
		client:  client,
		model:   cfg.Model,
		dim:     dim,
		timeout: cfg.Timeout,
		policy:  policy,
	}, nil
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// Validate input
	if len(text) == 0 {
		return nil, errors.New("cannot embed empty text")
	}

	var resp openai.EmbeddingResponse
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: []string{text},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}

	v := resp.Data[0].Embedding

	// L2 normalize (important for cosine similarity)
	l2normalize(v)

	return v, nil
}

// Dimension returns the embedding dimension
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *OpenAIEmbedder) ModelInfo() string {
	return "openai-" + e.model
}
