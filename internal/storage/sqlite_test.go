package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/osusume/internal/models"
)

func openTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLiteCatalog_SaveAndGet(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	item := models.Item{
		ID:                  "sku-1",
		Title:               "Oak Chair",
		Brand:               "Woodline",
		Price:               129.5,
		Categories:          []string{"Furniture", "Chairs"},
		Images:              []string{"a.jpg"},
		CreativeDescription: "not stored",
	}
	if err := c.SaveItems(ctx, []models.Item{item}); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetItem(ctx, "sku-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Oak Chair" || got.Price != 129.5 || len(got.Categories) != 2 || got.Images[0] != "a.jpg" {
		t.Errorf("got %+v", got)
	}
	if got.CreativeDescription != "" {
		t.Error("creative description should not be persisted")
	}

	item.Title = "Oak Armchair"
	item.Categories = []string{"Chairs"}
	if err := c.SaveItems(ctx, []models.Item{item}); err != nil {
		t.Fatal(err)
	}
	got, _ = c.GetItem(ctx, "sku-1")
	if got.Title != "Oak Armchair" {
		t.Errorf("item not replaced: %+v", got)
	}
	if n, _ := c.CountItems(ctx); n != 1 {
		t.Errorf("CountItems = %d, want 1", n)
	}

	if _, err := c.GetItem(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	summary, err := Summarize(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalItems != 0 || summary.ByCategory == nil || len(summary.ByCategory) != 0 {
		t.Errorf("empty catalog summary = %+v", summary)
	}

	items := []models.Item{
		{ID: "1", Categories: []string{"Furniture", "Chairs"}},
		{ID: "2", Categories: []string{"Furniture", "Tables"}},
		{ID: "3", Categories: []string{"Lighting", " "}},
		{ID: "4"},
	}
	if err := c.SaveItems(ctx, items); err != nil {
		t.Fatal(err)
	}
	// Re-saving an item replaces its categories.
	if err := c.SaveItems(ctx, []models.Item{{ID: "2", Categories: []string{"Tables"}}}); err != nil {
		t.Fatal(err)
	}

	summary, err = Summarize(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalItems != 4 {
		t.Errorf("TotalItems = %d, want 4", summary.TotalItems)
	}
	want := map[string]int{"Furniture": 1, "Chairs": 1, "Tables": 1, "Lighting": 1}
	if len(summary.ByCategory) != len(want) {
		t.Errorf("ByCategory = %v, want %v", summary.ByCategory, want)
	}
	for cat, n := range want {
		if summary.ByCategory[cat] != n {
			t.Errorf("ByCategory[%s] = %d, want %d", cat, summary.ByCategory[cat], n)
		}
	}
}
