package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/osusume/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT,
		brand TEXT,
		price REAL,
		data TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_brand ON items(brand);

	CREATE TABLE IF NOT EXISTS item_categories (
		item_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		category TEXT NOT NULL,
		PRIMARY KEY (item_id, position),
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_item_categories_category ON item_categories(category);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveItems inserts or replaces items in one transaction. created_at is kept for items
// that already exist.
func (s *SQLiteCatalog) SaveItems(ctx context.Context, items []models.Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsertItem, err := tx.PrepareContext(ctx,
		`INSERT INTO items (id, title, brand, price, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, brand = excluded.brand, price = excluded.price,
		   data = excluded.data, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer upsertItem.Close()
	clearCategories, err := tx.PrepareContext(ctx, `DELETE FROM item_categories WHERE item_id = ?`)
	if err != nil {
		return err
	}
	defer clearCategories.Close()
	insertCategory, err := tx.PrepareContext(ctx,
		`INSERT INTO item_categories (item_id, position, category) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertCategory.Close()

	now := time.Now()
	for _, it := range items {
		it.CreativeDescription = ""
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("failed to marshal item %s: %w", it.ID, err)
		}
		if _, err := upsertItem.ExecContext(ctx, it.ID, it.Title, it.Brand, it.Price, string(data), now, now); err != nil {
			return fmt.Errorf("failed to save item %s: %w", it.ID, err)
		}
		if _, err := clearCategories.ExecContext(ctx, it.ID); err != nil {
			return err
		}
		for pos, cat := range it.Categories {
			cat = strings.TrimSpace(cat)
			if cat == "" {
				continue
			}
			if _, err := insertCategory.ExecContext(ctx, it.ID, pos, cat); err != nil {
				return fmt.Errorf("failed to save categories for %s: %w", it.ID, err)
			}
		}
	}
	return tx.Commit()
}

// GetItem returns an item by id, or ErrNotFound.
func (s *SQLiteCatalog) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM items WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var it models.Item
	if err := json.Unmarshal([]byte(data), &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %s: %w", id, err)
	}
	return &it, nil
}

// CountItems returns the number of items in the catalog.
func (s *SQLiteCatalog) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

// CategoryCounts returns how many times each category is assigned across all items.
func (s *SQLiteCatalog) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM item_categories GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
