package describe

import (
	"fmt"

	"github.com/hyperjump/osusume/internal/config"
	"go.uber.org/zap"
)

// Provider names accepted in describe.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// New returns the configured describer. It returns nil, and the caller uses Fallback for
// every item, when the provider is "none" or its API key is missing.
func New(cfg *config.DescribeConfig, logger *zap.Logger) (Describer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		d   Describer
		err error
	)
	switch cfg.Provider {
	case ProviderNone:
		logger.Info("creative descriptions use the fallback template")
		return nil, nil
	case ProviderOpenAI, "":
		var od *OpenAIDescriber
		if od, err = NewOpenAIDescriber(cfg.APIKey, cfg.Model, cfg.MaxTokens); err == nil {
			d = od
		}
	case ProviderAnthropic:
		var ad *AnthropicDescriber
		if ad, err = NewAnthropicDescriber(cfg.APIKey, cfg.Model, cfg.MaxTokens); err == nil {
			d = ad
		}
	default:
		return nil, fmt.Errorf("unknown describe provider: %s (supported: openai, anthropic, none)", cfg.Provider)
	}
	if err != nil {
		logger.Warn("description generator unavailable, using fallback template",
			zap.String("provider", cfg.Provider),
			zap.Error(err))
		return nil, nil
	}
	logger.Info("description generator initialized", zap.String("provider", cfg.Provider))
	return d, nil
}
