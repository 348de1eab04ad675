package vector

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/osusume/internal/models"
	"go.uber.org/zap"
)

func benchRecords(n, dim int) []models.VectorRecord {
	recs := make([]models.VectorRecord, n)
	for i := range recs {
		v := make([]float32, dim)
		v[0] = float32(i) / float32(n)
		v[i%dim] += 0.5
		recs[i] = models.VectorRecord{ID: fmt.Sprintf("sku-%d", i), Vector: v}
	}
	return recs
}

func BenchmarkFlatSearch(b *testing.B) {
	recs := benchRecords(1000, 384)
	vecs := make([][]float32, len(recs))
	for i, r := range recs {
		vecs[i] = r.Vector
	}
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = flatSearch(vecs, query, 8, nil)
	}
}

func BenchmarkLocalIndexQuery(b *testing.B) {
	idx, err := OpenLocalIndex(filepath.Join(b.TempDir(), "bench.index"), 384, zap.NewNop())
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	if _, err := idx.Upsert(ctx, benchRecords(1000, 384)); err != nil {
		b.Fatal(err)
	}
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Query(ctx, query, 8)
	}
}
