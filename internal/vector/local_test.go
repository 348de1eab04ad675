package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/osusume/internal/models"
	"go.uber.org/zap"
)

func record(id string, vec ...float32) models.VectorRecord {
	return models.VectorRecord{
		ID:       id,
		Vector:   vec,
		Metadata: models.Item{ID: id, Title: "title " + id, Categories: []string{"Furniture"}},
	}
}

func openTestIndex(t *testing.T, dim int) (*LocalIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indices", "products.index")
	idx, err := OpenLocalIndex(path, dim, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return idx, path
}

func TestLocalIndex_UpsertQueryScores(t *testing.T) {
	idx, _ := openTestIndex(t, 2)
	ctx := context.Background()

	n, err := idx.Upsert(ctx, []models.VectorRecord{
		record("far", 2, 0),
		record("near", 0, 0),
		record("mid", 1, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Upsert returned %d, want 3", n)
	}

	matches, err := idx.Query(ctx, []float32{0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		id    string
		score float64
	}{{"near", 1}, {"mid", 0.5}, {"far", 1.0 / 3}}
	if len(matches) != len(want) {
		t.Fatalf("got %d matches, want %d", len(matches), len(want))
	}
	for i, w := range want {
		if matches[i].ID != w.id {
			t.Errorf("rank %d: id %s, want %s", i, matches[i].ID, w.id)
		}
		if math.Abs(matches[i].Score-w.score) > 1e-6 {
			t.Errorf("rank %d: score %v, want %v", i, matches[i].Score, w.score)
		}
		if matches[i].Metadata.Title != "title "+w.id {
			t.Errorf("rank %d: metadata not returned: %+v", i, matches[i].Metadata)
		}
	}
}

func TestLocalIndex_EveryUpsertedIDIsFound(t *testing.T) {
	idx, _ := openTestIndex(t, 3)
	ctx := context.Background()
	records := []models.VectorRecord{
		record("a", 1, 0, 0),
		record("b", 0, 1, 0),
		record("c", 0, 0, 1),
		record("d", 1, 1, 1),
	}
	if _, err := idx.Upsert(ctx, records); err != nil {
		t.Fatal(err)
	}
	for _, r := range records {
		matches, err := idx.Query(ctx, r.Vector, len(records))
		if err != nil {
			t.Fatal(err)
		}
		if matches[0].ID != r.ID || matches[0].Score != 1 {
			t.Errorf("query with %s's vector: top = %s (%v)", r.ID, matches[0].ID, matches[0].Score)
		}
	}
}

func TestLocalIndex_QueryEdgeCases(t *testing.T) {
	idx, _ := openTestIndex(t, 2)
	ctx := context.Background()

	matches, err := idx.Query(ctx, []float32{0, 0}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if matches == nil || len(matches) != 0 {
		t.Errorf("empty store should return empty non-nil result, got %#v", matches)
	}

	if _, err := idx.Query(ctx, []float32{0, 0}, 0); !errors.Is(err, ErrInvalidK) {
		t.Errorf("k=0: expected ErrInvalidK, got %v", err)
	}
	if _, err := idx.Query(ctx, []float32{0, 0, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("wrong query dim: expected ErrDimensionMismatch, got %v", err)
	}

	_, _ = idx.Upsert(ctx, []models.VectorRecord{record("a", 0, 0), record("b", 1, 1)})
	matches, _ = idx.Query(ctx, []float32{0, 0}, 8)
	if len(matches) != 2 {
		t.Errorf("k larger than store should return all records, got %d", len(matches))
	}
}

func TestLocalIndex_UpsertEmptyAndMismatch(t *testing.T) {
	idx, path := openTestIndex(t, 2)
	ctx := context.Background()

	n, err := idx.Upsert(ctx, nil)
	if err != nil || n != 0 {
		t.Errorf("empty upsert = (%d, %v), want (0, nil)", n, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty upsert should not write the index")
	}

	_, err = idx.Upsert(ctx, []models.VectorRecord{record("ok", 1, 1), record("bad", 1, 1, 1)})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if size, _ := idx.Size(ctx); size != 0 {
		t.Errorf("rejected batch should not be applied, size = %d", size)
	}
}

func TestLocalIndex_DuplicateIDsAppearOnce(t *testing.T) {
	idx, _ := openTestIndex(t, 2)
	ctx := context.Background()

	_, _ = idx.Upsert(ctx, []models.VectorRecord{record("a", 5, 5), record("b", 1, 0)})
	replaced := record("a", 0, 0)
	replaced.Metadata.Title = "updated"
	n, err := idx.Upsert(ctx, []models.VectorRecord{replaced, record("c", 3, 3), record("c", 2, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Upsert returned %d, want 3", n)
	}
	if size, _ := idx.Size(ctx); size != 3 {
		t.Errorf("Size = %d, want 3", size)
	}

	matches, _ := idx.Query(ctx, []float32{0, 0}, 10)
	seen := map[string]int{}
	for _, m := range matches {
		seen[m.ID]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("id %s appears %d times", id, count)
		}
	}
	if matches[0].ID != "a" || matches[0].Metadata.Title != "updated" {
		t.Errorf("re-upserted record not replaced: %+v", matches[0])
	}
	if matches[2].ID != "c" || matches[2].Score != Score(2) {
		t.Errorf("last duplicate in batch should win: %+v", matches[2])
	}
}

func TestLocalIndex_PersistsAcrossReopen(t *testing.T) {
	idx, path := openTestIndex(t, 3)
	ctx := context.Background()
	records := []models.VectorRecord{
		record("x", 0.1, 0.2, 0.3),
		record("y", -1, 0.5, 2),
	}
	records[1].Metadata.Price = 49.5
	records[1].Metadata.Images = []string{"https://example.com/y.jpg"}
	if _, err := idx.Upsert(ctx, records); err != nil {
		t.Fatal(err)
	}
	before, _ := idx.Query(ctx, []float32{0, 0, 0}, 2)
	idx.Close()

	if _, err := os.Stat(path + ".meta"); err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}

	reopened, err := OpenLocalIndex(path, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	after, err := reopened.Query(ctx, []float32{0, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("got %d results after reopen, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ID != before[i].ID || after[i].Score != before[i].Score {
			t.Errorf("rank %d differs: %+v vs %+v", i, after[i], before[i])
		}
	}
	for _, m := range after {
		if m.ID == "y" && (m.Metadata.Price != 49.5 || len(m.Metadata.Images) != 1) {
			t.Errorf("metadata not restored: %+v", m.Metadata)
		}
	}
}

func TestOpenLocalIndex_MissingFilesStartEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.index")
	if err := os.WriteFile(path+".meta", []byte(`{"version":1,"dimension":2,"ids":["a"],"metadatas":{}}`), 0644); err != nil {
		t.Fatal(err)
	}
	idx, err := OpenLocalIndex(path, 2, nil)
	if err != nil {
		t.Fatalf("missing blob should not fail: %v", err)
	}
	if size, _ := idx.Size(context.Background()); size != 0 {
		t.Errorf("expected empty index, size = %d", size)
	}
}

// hugeCountBlob is an empty blob whose header claims 2^32-1 vectors.
func hugeCountBlob() []byte {
	blob := encodeBlob(2, nil)
	binary.LittleEndian.PutUint32(blob[12:16], math.MaxUint32)
	return blob
}

func TestOpenLocalIndex_CorruptedFilesFail(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
		meta string
	}{
		{"garbage blob", []byte("not an index"), `{"version":1,"dimension":2,"ids":[],"metadatas":{}}`},
		{"truncated blob", encodeBlob(2, [][]float32{{1, 2}})[:18], `{"version":1,"dimension":2,"ids":["a"],"metadatas":{}}`},
		{"garbage sidecar", encodeBlob(2, nil), `{ids:`},
		{"blob dimension", encodeBlob(3, nil), `{"version":1,"dimension":2,"ids":[],"metadatas":{}}`},
		{"sidecar version", encodeBlob(2, nil), `{"version":7,"dimension":2,"ids":[],"metadatas":{}}`},
		{"count larger than file", hugeCountBlob(), `{"version":1,"dimension":2,"ids":[],"metadatas":{}}`},
		{"trailing bytes", append(encodeBlob(2, [][]float32{{1, 2}}), 0, 0, 0, 0), `{"version":1,"dimension":2,"ids":["a"],"metadatas":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "products.index")
			if err := os.WriteFile(path, tt.blob, 0644); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path+".meta", []byte(tt.meta), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := OpenLocalIndex(path, 2, nil); err == nil {
				t.Error("expected error for corrupted index files")
			}
		})
	}
}

func TestOpenLocalIndex_SkipsUnresolvedPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.index")
	blob := encodeBlob(2, [][]float32{{5, 5}, {0, 0}})
	if err := os.WriteFile(path, blob, 0644); err != nil {
		t.Fatal(err)
	}
	meta := `{"version":1,"dimension":2,"ids":["a"],"metadatas":{"a":{"id":"a","title":"A"}}}`
	if err := os.WriteFile(path+".meta", []byte(meta), 0644); err != nil {
		t.Fatal(err)
	}
	idx, err := OpenLocalIndex(path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	matches, err := idx.Query(context.Background(), []float32{0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "a" {
		t.Errorf("expected only the resolved record, got %+v", matches)
	}

	// New records go after the orphaned position and survive a reopen.
	if _, err := idx.Upsert(context.Background(), []models.VectorRecord{record("b", 0, 0)}); err != nil {
		t.Fatal(err)
	}
	reopened, err := OpenLocalIndex(path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	matches, _ = reopened.Query(context.Background(), []float32{0, 0}, 5)
	if len(matches) != 2 || matches[0].ID != "b" {
		t.Errorf("unexpected results after reopen: %+v", matches)
	}
}

func TestLocalIndex_PersistFailureLeavesStateUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.index")
	// A directory where the sidecar should go makes the rename fail.
	if err := os.MkdirAll(filepath.Join(path+".meta", "occupied"), 0755); err != nil {
		t.Fatal(err)
	}
	idx, err := OpenLocalIndex(path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = idx.Upsert(context.Background(), []models.VectorRecord{record("a", 0, 0)})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if size, _ := idx.Size(context.Background()); size != 0 {
		t.Errorf("failed upsert should not be visible, size = %d", size)
	}
}

func TestLocalIndex_ConcurrentReadersAndWriters(t *testing.T) {
	idx, _ := openTestIndex(t, 2)
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				id := string(rune('a'+w)) + string(rune('0'+i))
				if _, err := idx.Upsert(ctx, []models.VectorRecord{record(id, float32(w), float32(i))}); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := idx.Query(ctx, []float32{1, 1}, 8); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if size, _ := idx.Size(ctx); size != 40 {
		t.Errorf("Size = %d, want 40", size)
	}
}
