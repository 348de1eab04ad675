package embedding

import (
	"fmt"

	"github.com/hyperjump/osusume/internal/config"
	"go.uber.org/zap"
)

// Provider names accepted in embedding.provider.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// New builds the configured embedder. When the configured provider cannot be initialized
// (no ONNX runtime, missing API key) it falls back to the deterministic MockEmbedder and
// logs a warning, so the service still starts.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	var (
		emb Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	case ProviderONNX, "":
		emb, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case ProviderOpenAI:
		emb, err = NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, openai, mock)", cfg.Provider)
	}
	if err != nil {
		logger.Warn("embedder unavailable, falling back to mock embeddings",
			zap.String("provider", cfg.Provider),
			zap.Error(err))
		return NewMockEmbedder(cfg.Dimensions), nil
	}
	logger.Info("embedder initialized", zap.String("provider", cfg.Provider), zap.Int("dimensions", cfg.Dimensions))
	return emb, nil
}
