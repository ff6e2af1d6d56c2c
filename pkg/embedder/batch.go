package embedder

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbedAll embeds every text with at most concurrency requests in flight.
// Result i belongs to texts[i]. The first error cancels the remaining work.
func EmbedAll(ctx context.Context, e Embedder, texts []string, concurrency int) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			embeddings[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}
