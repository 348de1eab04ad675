// Package embedding turns product text into fixed-dimension vectors.
package embedding

import (
	"context"

	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text. Implementations must return vectors of
// exactly Dimensions() length and be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// cacheReporter is implemented by embedders backed by an EmbeddingCache.
type cacheReporter interface {
	CacheStats() (hits, misses uint64)
}

// LogCacheStats logs the embedding cache hit and miss counts of e, if it keeps a cache.
func LogCacheStats(e Embedder, logger *zap.Logger) {
	r, ok := e.(cacheReporter)
	if !ok || logger == nil {
		return
	}
	hits, misses := r.CacheStats()
	logger.Info("embedding cache stats", zap.Uint64("hits", hits), zap.Uint64("misses", misses))
}
