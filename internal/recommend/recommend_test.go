package recommend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/osusume/internal/describe"
	"github.com/hyperjump/osusume/internal/embedding"
	"github.com/hyperjump/osusume/internal/ingest"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/vector"
	"go.uber.org/zap"
)

func seededStore(t *testing.T, emb embedding.Embedder, n int) vector.Store {
	t.Helper()
	store, err := vector.OpenLocalIndex(filepath.Join(t.TempDir(), "products.index"), emb.Dimensions(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	items := make([]models.Item, n)
	for i := range items {
		items[i] = models.Item{
			ID:       fmt.Sprintf("sku-%d", i),
			Title:    fmt.Sprintf("Chair %d", i),
			Material: "oak",
			Color:    "natural",
		}
	}
	if n > 0 {
		if _, err := ingest.NewPipeline(emb, store).UpsertItems(context.Background(), items); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

type stubDescriber struct {
	calls atomic.Int32
	fn    func(ctx context.Context, item models.Item) (string, error)
}

func (s *stubDescriber) Describe(ctx context.Context, item models.Item) (string, error) {
	s.calls.Add(1)
	return s.fn(ctx, item)
}

func TestRecommend_DescribesTopThree(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	store := seededStore(t, emb, 5)
	d := &stubDescriber{fn: func(_ context.Context, it models.Item) (string, error) {
		return "generated for " + it.ID, nil
	}}
	p := NewPipeline(emb, store, WithDescriber(d))

	items, err := p.Recommend(context.Background(), "oak chair")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 results, got %d", len(items))
	}
	for i, it := range items {
		if i < Described {
			if it.CreativeDescription != "generated for "+it.ID {
				t.Errorf("result %d: description = %q", i, it.CreativeDescription)
			}
		} else if it.CreativeDescription != "" {
			t.Errorf("result %d should have no description, got %q", i, it.CreativeDescription)
		}
	}
	if d.calls.Load() != Described {
		t.Errorf("describer called %d times, want %d", d.calls.Load(), Described)
	}
}

func TestRecommend_LimitsToTopK(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	p := NewPipeline(emb, seededStore(t, emb, 12))
	items, err := p.Recommend(context.Background(), "chair")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != TopK {
		t.Errorf("expected %d results, got %d", TopK, len(items))
	}
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.ID] {
			t.Errorf("duplicate id %s", it.ID)
		}
		seen[it.ID] = true
	}
}

func TestRecommend_FewerThanThree(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	p := NewPipeline(emb, seededStore(t, emb, 2))
	items, err := p.Recommend(context.Background(), "chair")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 results, got %d", len(items))
	}
	for _, it := range items {
		if it.CreativeDescription != describe.Fallback(it) {
			t.Errorf("without a describer the template should be used, got %q", it.CreativeDescription)
		}
	}
}

func TestRecommend_EmptyStore(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	p := NewPipeline(emb, seededStore(t, emb, 0))
	items, err := p.Recommend(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", items)
	}
}

func TestRecommend_DescriberFailureUsesFallback(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	store := seededStore(t, emb, 4)
	tests := []struct {
		name string
		fn   func(ctx context.Context, item models.Item) (string, error)
	}{
		{"error", func(context.Context, models.Item) (string, error) {
			return "", errors.New("quota exceeded")
		}},
		{"empty text", func(context.Context, models.Item) (string, error) {
			return "", nil
		}},
		{"timeout", func(ctx context.Context, _ models.Item) (string, error) {
			<-ctx.Done()
			return "too late", ctx.Err()
		}},
		{"ignores context", func(context.Context, models.Item) (string, error) {
			time.Sleep(200 * time.Millisecond)
			return "too late", nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(emb, store,
				WithDescriber(&stubDescriber{fn: tt.fn}),
				WithDescribeTimeout(20*time.Millisecond))
			items, err := p.Recommend(context.Background(), "chair")
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i < Described; i++ {
				got := items[i].CreativeDescription
				if got != describe.Fallback(items[i]) {
					t.Errorf("result %d: expected fallback, got %q", i, got)
				}
				if !strings.Contains(got, "natural oak Chair") {
					t.Errorf("fallback should mention color, material and title: %q", got)
				}
			}
			if items[3].CreativeDescription != "" {
				t.Error("fourth result should have no description")
			}
		})
	}
}

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model not loaded")
}

func TestRecommend_EmbedError(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	p := NewPipeline(failingEmbedder{emb}, seededStore(t, emb, 1))
	if _, err := p.Recommend(context.Background(), "chair"); err == nil {
		t.Error("expected error when embedding fails")
	}
}
