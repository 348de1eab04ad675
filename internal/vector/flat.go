package vector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/osusume/internal/models"
)

// indexState is an immutable snapshot of a flat index. ids and vectors are indexed by
// insertion position; an empty id marks a position with no live record.
type indexState struct {
	ids       []string
	vectors   [][]float32
	metadatas map[string]models.Item
	positions map[string]int
}

func emptyState() *indexState {
	return &indexState{
		metadatas: make(map[string]models.Item),
		positions: make(map[string]int),
	}
}

// newState builds a snapshot from persisted data. ids shorter than vectors leave the tail
// positions unresolved; a repeated id keeps its last position.
func newState(ids []string, vectors [][]float32, metadatas map[string]models.Item) *indexState {
	st := emptyState()
	st.vectors = vectors
	st.ids = make([]string, len(vectors))
	for pos := 0; pos < len(ids) && pos < len(vectors); pos++ {
		id := ids[pos]
		if id == "" {
			continue
		}
		if prev, ok := st.positions[id]; ok {
			st.ids[prev] = ""
		}
		st.ids[pos] = id
		st.positions[id] = pos
	}
	for id := range st.positions {
		meta := metadatas[id]
		meta.ID = id
		meta.Normalize()
		st.metadatas[id] = meta
	}
	return st
}

// with returns a copy of the snapshot with records applied. Known ids are replaced in
// place; new ids are appended.
func (s *indexState) with(records []models.VectorRecord) *indexState {
	next := &indexState{
		ids:       append(make([]string, 0, len(s.ids)+len(records)), s.ids...),
		vectors:   append(make([][]float32, 0, len(s.vectors)+len(records)), s.vectors...),
		metadatas: make(map[string]models.Item, len(s.metadatas)+len(records)),
		positions: make(map[string]int, len(s.positions)+len(records)),
	}
	for id, m := range s.metadatas {
		next.metadatas[id] = m
	}
	for id, pos := range s.positions {
		next.positions[id] = pos
	}
	for _, r := range records {
		vec := append([]float32(nil), r.Vector...)
		meta := r.Metadata.Clone()
		meta.ID = r.ID
		if pos, ok := next.positions[r.ID]; ok {
			next.vectors[pos] = vec
		} else {
			next.positions[r.ID] = len(next.vectors)
			next.ids = append(next.ids, r.ID)
			next.vectors = append(next.vectors, vec)
		}
		next.metadatas[r.ID] = meta
	}
	return next
}

func (s *indexState) unresolved(pos int) bool {
	return pos >= len(s.ids) || s.ids[pos] == ""
}

func (s *indexState) search(query []float32, k int) []models.Match {
	hits := flatSearch(s.vectors, query, k, s.unresolved)
	matches := make([]models.Match, 0, len(hits))
	for _, h := range hits {
		id := s.ids[h.pos]
		matches = append(matches, models.Match{
			ID:       id,
			Score:    h.score(),
			Metadata: s.metadatas[id].Clone(),
		})
	}
	return matches
}

// flatStore serializes writers with a mutex and serves readers from the current snapshot.
// persist runs before a new snapshot is published, so a failed write leaves the store as
// it was.
type flatStore struct {
	dim     int
	mu      sync.Mutex
	state   atomic.Pointer[indexState]
	persist func(*indexState) error
}

func newFlatStore(dim int, st *indexState, persist func(*indexState) error) *flatStore {
	f := &flatStore{dim: dim, persist: persist}
	f.state.Store(st)
	return f
}

// Upsert inserts or replaces records by id and returns len(records).
func (f *flatStore) Upsert(ctx context.Context, records []models.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := checkDimensions(records, f.dim); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.state.Load().with(dedupe(records))
	if err := f.persist(next); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	f.state.Store(next)
	return len(records), nil
}

// Query returns the k nearest records by Euclidean distance.
func (f *flatStore) Query(ctx context.Context, query []float32, k int) ([]models.Match, error) {
	if err := checkQuery(query, k, f.dim); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.state.Load().search(query, k), nil
}

// Size returns the number of live records.
func (f *flatStore) Size(ctx context.Context) (int, error) {
	return len(f.state.Load().positions), nil
}

// Dimensions returns the vector dimension.
func (f *flatStore) Dimensions() int {
	return f.dim
}

// Close is a no-op; every upsert is already on disk.
func (f *flatStore) Close() error {
	return nil
}
