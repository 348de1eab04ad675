// Package vector stores item embeddings and answers nearest-neighbor queries over a local
// flat index, a Qdrant collection or a file-backed stand-in for the remote service.
package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/osusume/internal/models"
)

// Store is the contract every backend implements. Upsert replaces records by id, so an id
// appears at most once in a query result.
type Store interface {
	Upsert(ctx context.Context, records []models.VectorRecord) (int, error)
	Query(ctx context.Context, vector []float32, k int) ([]models.Match, error)
	Size(ctx context.Context) (int, error)
	Dimensions() int
	Backend() BackendKind
	Close() error
}

// BackendKind identifies the store chosen at startup.
type BackendKind string

const (
	BackendLocal      BackendKind = "local_index"
	BackendLiveRemote BackendKind = "live_remote"
	BackendMockRemote BackendKind = "mock_remote"
)

// Selection records which backend negotiation picked and whether it is a fallback.
type Selection struct {
	Kind     BackendKind `json:"kind"`
	Degraded bool        `json:"degraded"`
	Reason   string      `json:"reason,omitempty"`
}

func checkDimensions(records []models.VectorRecord, dim int) error {
	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: record %q has %d, expected %d", ErrDimensionMismatch, r.ID, len(r.Vector), dim)
		}
	}
	return nil
}

func checkQuery(query []float32, k, dim int) error {
	if k <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(query) != dim {
		return fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), dim)
	}
	return nil
}

// dedupe keeps the last record for each id, ordered by each id's first occurrence.
func dedupe(records []models.VectorRecord) []models.VectorRecord {
	index := make(map[string]int, len(records))
	out := make([]models.VectorRecord, 0, len(records))
	for _, r := range records {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

// StorePath returns the file backing s, or "" for stores that are not file-backed.
func StorePath(s Store) string {
	if p, ok := s.(interface{ Path() string }); ok {
		return p.Path()
	}
	return ""
}
