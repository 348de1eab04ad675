// Package recommend answers free-text requests with the nearest catalog items, adding a
// creative description to the top results.
package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/osusume/internal/describe"
	"github.com/hyperjump/osusume/internal/embedding"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/vector"
	"go.uber.org/zap"
)

const (
	// TopK is the number of items returned per request.
	TopK = 8
	// Described is how many of the top items get a creative description.
	Described = 3

	defaultDescribeTimeout = 10 * time.Second
)

// Pipeline embeds a request, queries the vector store and decorates the results.
type Pipeline struct {
	embedder        embedding.Embedder
	store           vector.Store
	describer       describe.Describer
	describeTimeout time.Duration
	logger          *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithDescriber sets the description generator. Without one every description comes from
// describe.Fallback.
func WithDescriber(d describe.Describer) Option {
	return func(p *Pipeline) { p.describer = d }
}

// WithDescribeTimeout bounds each description call.
func WithDescribeTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.describeTimeout = d
		}
	}
}

// NewPipeline creates a recommendation pipeline.
func NewPipeline(embedder embedding.Embedder, store vector.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder:        embedder,
		store:           store,
		describeTimeout: defaultDescribeTimeout,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Recommend returns up to TopK items in rank order. The first min(Described, n) items carry a
// non-empty creative description; the rest have none.
func (p *Pipeline) Recommend(ctx context.Context, message string) ([]models.Item, error) {
	start := time.Now()
	q, err := p.embedder.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to embed message: %w", err)
	}
	matches, err := p.store.Query(ctx, q, TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	items := make([]models.Item, len(matches))
	for i, m := range matches {
		items[i] = m.Metadata.Clone()
		items[i].CreativeDescription = ""
	}

	n := min(Described, len(items))
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items[i].CreativeDescription = p.describe(ctx, items[i])
		}(i)
	}
	wg.Wait()

	p.logger.Debug("recommendation served",
		zap.Int("results", len(items)),
		zap.Duration("took", time.Since(start)))
	return items, nil
}

func (p *Pipeline) describe(ctx context.Context, item models.Item) string {
	if p.describer == nil {
		return describe.Fallback(item)
	}
	ctx, cancel := context.WithTimeout(ctx, p.describeTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := p.describer.Describe(ctx, item)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.text != "" {
			return r.text
		}
		p.logger.Warn("description generation failed, using fallback", zap.String("id", item.ID), zap.Error(r.err))
	case <-ctx.Done():
		p.logger.Warn("description generation timed out, using fallback", zap.String("id", item.ID), zap.Error(ctx.Err()))
	}
	return describe.Fallback(item)
}
