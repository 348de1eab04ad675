package utils

import "go.uber.org/zap"

// NewLogger returns the service logger, named "osusume". When debug is true it uses the
// development config (human-readable, debug level); otherwise the production config
// (JSON, info level). opts are applied when the logger is built.
func NewLogger(debug bool, opts ...zap.Option) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	return logger.Named("osusume"), nil
}
