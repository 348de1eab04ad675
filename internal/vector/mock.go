package vector

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hyperjump/osusume/internal/models"
	"go.uber.org/zap"
)

// mockDocument is the on-disk form of the mock remote: the whole collection in one file.
type mockDocument struct {
	Version   int          `json:"version"`
	Dimension int          `json:"dimension"`
	Vectors   []mockVector `json:"vectors"`
}

type mockVector struct {
	ID       string      `json:"id"`
	Values   []float32   `json:"values"`
	Metadata models.Item `json:"metadata"`
}

// MockRemote stands in for the remote service when no credentials are configured. It keeps
// the collection in a single JSON document that is rewritten on every upsert and ranks with
// the same flat scan as LocalIndex.
type MockRemote struct {
	*flatStore
	path   string
	logger *zap.Logger
}

// OpenMockRemote loads the mock collection at path, starting empty if the file is missing.
func OpenMockRemote(path string, dim int, logger *zap.Logger) (*MockRemote, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if path == "" {
		return nil, fmt.Errorf("mock remote path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MockRemote{path: path, logger: logger}
	st, err := m.load(dim)
	if err != nil {
		return nil, err
	}
	m.flatStore = newFlatStore(dim, st, m.save)
	logger.Info("mock remote opened", zap.String("path", path), zap.Int("records", len(st.positions)))
	return m, nil
}

// Backend returns BackendMockRemote.
func (m *MockRemote) Backend() BackendKind {
	return BackendMockRemote
}

// Path returns the mock document path.
func (m *MockRemote) Path() string {
	return m.path
}

func (m *MockRemote) load(dim int) (*indexState, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyState(), nil
		}
		return nil, fmt.Errorf("read mock remote: %w", err)
	}
	var doc mockDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode mock remote %s: %w", m.path, err)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("decode mock remote %s: unsupported version %d", m.path, doc.Version)
	}
	if doc.Dimension != dim {
		return nil, fmt.Errorf("decode mock remote %s: %w: file has %d, expected %d", m.path, ErrDimensionMismatch, doc.Dimension, dim)
	}
	ids := make([]string, 0, len(doc.Vectors))
	vectors := make([][]float32, 0, len(doc.Vectors))
	metas := make(map[string]models.Item, len(doc.Vectors))
	for i, v := range doc.Vectors {
		if len(v.Values) != dim {
			return nil, fmt.Errorf("decode mock remote %s: %w: vector %d has %d values", m.path, ErrDimensionMismatch, i, len(v.Values))
		}
		ids = append(ids, v.ID)
		vectors = append(vectors, v.Values)
		metas[v.ID] = v.Metadata
	}
	return newState(ids, vectors, metas), nil
}

func (m *MockRemote) save(st *indexState) error {
	doc := mockDocument{
		Version:   formatVersion,
		Dimension: m.Dimensions(),
		Vectors:   make([]mockVector, 0, len(st.positions)),
	}
	for pos, id := range st.ids {
		if id == "" {
			continue
		}
		doc.Vectors = append(doc.Vectors, mockVector{ID: id, Values: st.vectors[pos], Metadata: st.metadatas[id]})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mock remote: %w", err)
	}
	if err := writeFileAtomic(m.path, data); err != nil {
		return fmt.Errorf("write mock remote: %w", err)
	}
	return nil
}
