// Package storage keeps a SQLite copy of ingested catalog items for lookups and analytics.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/osusume/internal/models"
)

// ErrNotFound is returned when an item id is not in the catalog.
var ErrNotFound = errors.New("item not found")

// Catalog persists ingested items.
type Catalog interface {
	SaveItems(ctx context.Context, items []models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	CountItems(ctx context.Context) (int64, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
	Close() error
}

// Summarize builds the analytics summary from a catalog.
func Summarize(ctx context.Context, c Catalog) (*models.AnalyticsSummary, error) {
	total, err := c.CountItems(ctx)
	if err != nil {
		return nil, err
	}
	byCategory, err := c.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &models.AnalyticsSummary{TotalItems: total, ByCategory: byCategory}, nil
}
