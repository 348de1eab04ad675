package utils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observed builds a logger whose entries are captured, filtered by the config's own level.
func observed(t *testing.T, debug bool) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	var logs *observer.ObservedLogs
	logger, err := NewLogger(debug, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		var core zapcore.Core
		core, logs = observer.New(c)
		return core
	}))
	if err != nil {
		t.Fatalf("NewLogger(%v) error: %v", debug, err)
	}
	return logger, logs
}

func TestNewLogger(t *testing.T) {
	t.Run("production drops debug entries", func(t *testing.T) {
		logger, logs := observed(t, false)
		logger.Debug("recommendation served", zap.Int("results", 8))
		logger.Info("vector store selected", zap.String("backend", "local_index"), zap.Int("dimensions", 384))

		if logs.Len() != 1 {
			t.Fatalf("expected only the info entry, got %d", logs.Len())
		}
		entry := logs.All()[0]
		if entry.LoggerName != "osusume" {
			t.Errorf("logger name = %q, want osusume", entry.LoggerName)
		}
		fields := entry.ContextMap()
		if fields["backend"] != "local_index" || fields["dimensions"] != int64(384) {
			t.Errorf("fields = %v", fields)
		}
	})

	t.Run("debug keeps debug entries", func(t *testing.T) {
		logger, logs := observed(t, true)
		logger.Debug("recommendation served", zap.Int("results", 8))
		if logs.FilterMessage("recommendation served").Len() != 1 {
			t.Errorf("debug entry missing, got %d entries", logs.Len())
		}
	})
}
