package vector

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// LocalIndex is a flat Euclidean index persisted as a binary blob at path and a JSON
// sidecar at path+".meta".
type LocalIndex struct {
	*flatStore
	path   string
	logger *zap.Logger
}

// OpenLocalIndex loads the index at path or starts empty when either file is missing.
// A file that exists but cannot be decoded, or was written for another dimension, is an error.
func OpenLocalIndex(path string, dim int, logger *zap.Logger) (*LocalIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if path == "" {
		return nil, fmt.Errorf("index path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &LocalIndex{path: path, logger: logger}
	st, err := l.load(dim)
	if err != nil {
		return nil, err
	}
	l.flatStore = newFlatStore(dim, st, l.save)
	logger.Info("local index opened",
		zap.String("path", path),
		zap.Int("records", len(st.positions)),
		zap.Int("dimensions", dim))
	return l, nil
}

// Backend returns BackendLocal.
func (l *LocalIndex) Backend() BackendKind {
	return BackendLocal
}

// Path returns the index blob path.
func (l *LocalIndex) Path() string {
	return l.path
}

func (l *LocalIndex) metaPath() string {
	return l.path + sidecarSuffix
}

func (l *LocalIndex) load(dim int) (*indexState, error) {
	blobOK, err := fileExists(l.path)
	if err != nil {
		return nil, fmt.Errorf("stat index: %w", err)
	}
	metaOK, err := fileExists(l.metaPath())
	if err != nil {
		return nil, fmt.Errorf("stat index sidecar: %w", err)
	}
	if !blobOK || !metaOK {
		if blobOK || metaOK {
			l.logger.Warn("index files incomplete, starting with an empty index",
				zap.String("path", l.path),
				zap.Bool("blob", blobOK),
				zap.Bool("sidecar", metaOK))
		}
		return emptyState(), nil
	}
	vectors, err := readBlobFile(l.path, dim)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	sc, err := readSidecarFile(l.metaPath(), dim)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if len(sc.IDs) != len(vectors) {
		l.logger.Warn("index sidecar and blob disagree on record count",
			zap.Int("ids", len(sc.IDs)),
			zap.Int("vectors", len(vectors)))
	}
	return newState(sc.IDs, vectors, sc.Metadatas), nil
}

// save writes the blob first so a crash before the sidecar lands leaves only
// unresolved positions behind.
func (l *LocalIndex) save(st *indexState) error {
	if err := writeFileAtomic(l.path, encodeBlob(l.Dimensions(), st.vectors)); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	data, err := json.Marshal(sidecar{
		Version:   formatVersion,
		Dimension: l.Dimensions(),
		IDs:       st.ids,
		Metadatas: st.metadatas,
	})
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := writeFileAtomic(l.metaPath(), data); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}
