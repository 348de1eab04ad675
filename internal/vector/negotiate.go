package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/osusume/internal/config"
	"go.uber.org/zap"
)

// Backend names accepted in vector.backend.
const (
	ModeAuto   = "auto"
	ModeLocal  = "local"
	ModeRemote = "remote"
)

type remoteDialer func(ctx context.Context, cfg *config.RemoteConfig, dim int, logger *zap.Logger) (Store, error)

func dialQdrant(ctx context.Context, cfg *config.RemoteConfig, dim int, logger *zap.Logger) (Store, error) {
	r, err := DialRemote(ctx, cfg, dim, logger)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Negotiate picks the vector store once at startup.
//
//   - local: LocalIndex.
//   - remote: the live Qdrant collection; failure to reach it is returned as an error.
//   - auto: the live collection when address and API key are set and it can be prepared;
//     without credentials the file-backed MockRemote; with credentials but an unreachable
//     service the LocalIndex. Both fallbacks are reported as degraded.
func Negotiate(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, Selection, error) {
	return negotiate(ctx, cfg, logger, dialQdrant)
}

func negotiate(ctx context.Context, cfg *config.Config, logger *zap.Logger, dial remoteDialer) (Store, Selection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dim := cfg.Embedding.Dimensions

	var (
		store Store
		sel   Selection
		err   error
	)
	switch cfg.Vector.Backend {
	case ModeLocal:
		sel = Selection{Kind: BackendLocal}
		store, err = openLocal(cfg, dim, logger)
	case ModeRemote:
		sel = Selection{Kind: BackendLiveRemote}
		store, err = dial(ctx, &cfg.Remote, dim, logger)
		if err != nil {
			err = fmt.Errorf("connect to remote vector store: %w", err)
		}
	case ModeAuto, "":
		if !cfg.Remote.HasCredentials() {
			sel = Selection{Kind: BackendMockRemote, Degraded: true, Reason: "remote credentials not configured"}
			store, err = openMock(cfg, dim, logger)
			break
		}
		store, err = dial(ctx, &cfg.Remote, dim, logger)
		if err == nil {
			sel = Selection{Kind: BackendLiveRemote}
			break
		}
		sel = Selection{Kind: BackendLocal, Degraded: true, Reason: fmt.Sprintf("remote unavailable: %v", err)}
		store, err = openLocal(cfg, dim, logger)
	default:
		return nil, Selection{}, fmt.Errorf("unknown vector backend: %s (supported: auto, local, remote)", cfg.Vector.Backend)
	}
	if err != nil {
		return nil, sel, err
	}

	fields := []zap.Field{zap.String("backend", string(sel.Kind)), zap.Int("dimensions", dim)}
	if sel.Degraded {
		logger.Warn("vector store degraded", append(fields, zap.String("reason", sel.Reason))...)
	} else {
		logger.Info("vector store selected", fields...)
	}
	return store, sel, nil
}

func openLocal(cfg *config.Config, dim int, logger *zap.Logger) (Store, error) {
	idx, err := OpenLocalIndex(cfg.Storage.IndexPath, dim, logger)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func openMock(cfg *config.Config, dim int, logger *zap.Logger) (Store, error) {
	m, err := OpenMockRemote(cfg.Storage.MockRemotePath, dim, logger)
	if err != nil {
		return nil, err
	}
	return m, nil
}
