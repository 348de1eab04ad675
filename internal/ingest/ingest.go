// Package ingest embeds catalog items and writes them to the vector store and item catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/embedding"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrMissingID is returned when an item has an empty id.
	ErrMissingID = errors.New("item id is required")
	// ErrInvalidID is returned when an item id has leading or trailing whitespace.
	ErrInvalidID = errors.New("item id must not have leading or trailing whitespace")
)

// Pipeline turns items into vector records and upserts them.
type Pipeline struct {
	embedder embedding.Embedder
	store    vector.Store
	catalog  storage.Catalog
	loader   *catalog.Loader
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for debug output and catalog failures.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithCatalog records ingested items in c after every successful upsert.
func WithCatalog(c storage.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(embedder embedding.Embedder, store vector.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder: embedder,
		store:    store,
		loader:   catalog.NewLoader(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UpsertItems embeds every item's composite text in one batch and upserts the records.
// It returns the number of records accepted by the store. The whole batch is rejected when
// any item lacks an id.
func (p *Pipeline) UpsertItems(ctx context.Context, items []models.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	normalized := make([]models.Item, len(items))
	texts := make([]string, len(items))
	for i, it := range items {
		it = it.Clone()
		it.Normalize()
		switch {
		case strings.TrimSpace(it.ID) == "":
			return 0, fmt.Errorf("%w (item %d)", ErrMissingID, i)
		case strings.TrimSpace(it.ID) != it.ID:
			return 0, fmt.Errorf("%w (item %d: %q)", ErrInvalidID, i, it.ID)
		}
		it.CreativeDescription = ""
		normalized[i] = it
		texts[i] = it.EmbeddingText()
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(normalized) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d items", len(vectors), len(normalized))
	}

	records := make([]models.VectorRecord, len(normalized))
	for i, it := range normalized {
		records[i] = models.VectorRecord{ID: it.ID, Vector: vectors[i], Metadata: it}
	}
	n, err := p.store.Upsert(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	p.logger.Debug("items upserted", zap.Int("count", n), zap.String("backend", string(p.store.Backend())))

	if p.catalog != nil {
		if err := p.catalog.SaveItems(ctx, normalized); err != nil {
			p.logger.Warn("failed to record items in catalog", zap.Int("count", len(normalized)), zap.Error(err))
		}
	}
	return n, nil
}

// IngestFile loads a CSV or XLSX catalog and upserts its items.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	p.logger.Debug("ingesting catalog file", zap.String("path", path))
	if !catalog.IsSupported(path) {
		return 0, fmt.Errorf("unsupported catalog file %q (supported: %s)", path, strings.Join(catalog.SupportedExtensions, ", "))
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", path)
	}
	items, err := p.loader.Load(path)
	if err != nil {
		return 0, err
	}
	n, err := p.UpsertItems(ctx, items)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
	}
	p.logger.Info("catalog file ingested", zap.String("path", path), zap.Int("items", n))
	return n, nil
}

// IngestDirectory ingests every catalog file under dir (recursively when recursive is true).
// It returns the number of files ingested and the first error encountered.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string, recursive bool) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	files := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !catalog.IsSupported(path) {
			return nil
		}
		if _, err := p.IngestFile(ctx, path); err != nil {
			return err
		}
		files++
		return nil
	})
	return files, err
}
