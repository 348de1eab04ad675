package vector

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/osusume/internal/models"
)

func TestMockRemote_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remote_mock", "vectors.json")
	m, err := OpenMockRemote(path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if m.Backend() != BackendMockRemote {
		t.Errorf("Backend = %s", m.Backend())
	}
	if _, err := m.Upsert(ctx, []models.VectorRecord{record("a", 0, 0), record("b", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Upsert(ctx, []models.VectorRecord{record("c", 2, 0), record("a", 0, 0.5)}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc mockDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Vectors) != 3 {
		t.Errorf("mock document should be merged by id, got %d vectors", len(doc.Vectors))
	}

	reopened, err := OpenMockRemote(path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	matches, err := reopened.Query(ctx, []float32{0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []string{"a", "b", "c"}
	wantScores := []float64{Score(0.5), Score(1), Score(2)}
	for i := range wantIDs {
		if matches[i].ID != wantIDs[i] || matches[i].Score != wantScores[i] {
			t.Errorf("rank %d = %s (%v), want %s (%v)", i, matches[i].ID, matches[i].Score, wantIDs[i], wantScores[i])
		}
	}
	if matches[1].Metadata.Categories[0] != "Furniture" {
		t.Errorf("metadata lost: %+v", matches[1].Metadata)
	}
}

func TestOpenMockRemote_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.json")
	_ = os.WriteFile(garbage, []byte("[1,2"), 0644)
	if _, err := OpenMockRemote(garbage, 2, nil); err == nil {
		t.Error("expected error for undecodable mock file")
	}
	wrongDim := filepath.Join(dir, "dim.json")
	_ = os.WriteFile(wrongDim, []byte(`{"version":1,"dimension":4,"vectors":[]}`), 0644)
	if _, err := OpenMockRemote(wrongDim, 2, nil); err == nil {
		t.Error("expected error for dimension mismatch")
	}
	m, err := OpenMockRemote(filepath.Join(dir, "missing.json"), 2, nil)
	if err != nil {
		t.Fatalf("missing file should start empty: %v", err)
	}
	if size, _ := m.Size(context.Background()); size != 0 {
		t.Errorf("Size = %d, want 0", size)
	}
}
