// Package server provides the HTTP API for osusume.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/internal/vector"
	"go.uber.org/zap"
)

// Recommender answers recommendation requests.
type Recommender interface {
	Recommend(ctx context.Context, message string) ([]models.Item, error)
}

// Ingester upserts catalog items.
type Ingester interface {
	UpsertItems(ctx context.Context, items []models.Item) (int, error)
}

// WatchService reports the catalog drop directories being watched.
type WatchService interface {
	Directories() []string
}

// Server is the HTTP server for the osusume API.
type Server struct {
	recommender Recommender
	ingester    Ingester
	store       vector.Store
	selection   vector.Selection
	catalog     storage.Catalog
	config      *config.Config
	watch       WatchService // optional
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil.
func NewServer(
	recommender Recommender,
	ingester Ingester,
	store vector.Store,
	selection vector.Selection,
	catalog storage.Catalog,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		recommender: recommender,
		ingester:    ingester,
		store:       store,
		selection:   selection,
		catalog:     catalog,
		config:      cfg,
		watch:       watch,
		logger:      logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upsert", s.handleUpsert)
		r.Post("/recommend", s.handleRecommend)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/items/{id}", s.handleGetItem)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

func (s *Server) allowedOrigins() []string {
	if s.config == nil || len(s.config.Server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.config.Server.AllowedOrigins
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server",
		zap.String("addr", addr),
		zap.String("backend", string(s.selection.Kind)),
		zap.Bool("degraded", s.selection.Degraded))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
