package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// embeddingsCreator is the part of the OpenAI client used for embeddings.
type embeddingsCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder requests embeddings from the OpenAI API, asking the model to shorten its
// output to the deployment dimension so vectors fit the same index as local embeddings.
type OpenAIEmbedder struct {
	client     embeddingsCreator
	model      openai.EmbeddingModel
	dimensions int
	cache      *EmbeddingCache
}

// NewOpenAIEmbedder creates an embedder for model (e.g. text-embedding-3-small).
func NewOpenAIEmbedder(apiKey, model string, dimensions, cacheSize int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	return newOpenAIEmbedder(openai.NewClient(apiKey), model, dimensions, cacheSize), nil
}

func newOpenAIEmbedder(client embeddingsCreator, model string, dimensions, cacheSize int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:     client,
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
		cache:      NewEmbeddingCache(cacheSize),
	}
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts with one API request for the texts that are not cached.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			out[i] = cached
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      missing,
		Model:      e.model,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(missing) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(missing))
	}
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(missing) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("openai embeddings: got dimension %d, expected %d", len(d.Embedding), e.dimensions)
		}
		vec := append([]float32(nil), d.Embedding...)
		out[missingIdx[d.Index]] = vec
		e.cache.Set(missing[d.Index], vec)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// CacheStats returns the embedding cache hit and miss counts.
func (e *OpenAIEmbedder) CacheStats() (hits, misses uint64) {
	return e.cache.Stats()
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
