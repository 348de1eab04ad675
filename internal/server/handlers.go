package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/osusume/internal/ingest"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/internal/vector"
	"go.uber.org/zap"
)

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var items []models.Item
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: expected a JSON array of items")
		return
	}
	s.logger.Debug("upsert request", zap.Int("items", len(items)))
	n, err := s.ingester.UpsertItems(r.Context(), items)
	if err != nil {
		s.logger.Error("upsert failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, models.UpsertResponse{Upserted: n})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("recommend request", zap.String("message", req.Message))
	items, err := s.recommender.Recommend(r.Context(), req.Message)
	if err != nil {
		s.logger.Error("recommend failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.RecommendResponse{Results: items})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := storage.Summarize(r.Context(), s.catalog)
	if err != nil {
		s.logger.Error("analytics failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.catalog.GetItem(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.logger.Error("get item failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vectors, err := s.store.Size(ctx)
	if err != nil {
		s.logger.Error("status: vector count failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	items, err := s.catalog.CountItems(ctx)
	if err != nil {
		s.logger.Error("status: catalog count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := models.StatusResponse{
		Backend: models.BackendStatus{
			Kind:     string(s.selection.Kind),
			Degraded: s.selection.Degraded,
			Reason:   s.selection.Reason,
			Path:     vector.StorePath(s.store),
		},
		Vectors:          vectors,
		Dimensions:       s.store.Dimensions(),
		CatalogItems:     items,
		WatchDirectories: []string{},
	}
	if s.watch != nil {
		resp.WatchDirectories = s.watch.Directories()
	}
	if s.config != nil {
		st := s.config.Storage
		resp.Config = map[string]string{
			"embedding_provider": s.config.Embedding.Provider,
			"describe_provider":  s.config.Describe.Provider,
			"vector_backend":     s.config.Vector.Backend,
			"database_path":      st.DatabasePath,
			"index_path":         st.IndexPath,
			"mock_remote_path":   st.MockRemotePath,
		}
		paths := append(storage.DatabaseFiles(st.DatabasePath), storage.IndexFiles(st.IndexPath)...)
		paths = append(paths, st.MockRemotePath)
		if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
			resp.DiskUsageBytes = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrMissingID),
		errors.Is(err, ingest.ErrInvalidID),
		errors.Is(err, vector.ErrDimensionMismatch),
		errors.Is(err, vector.ErrInvalidK):
		return http.StatusBadRequest
	case errors.Is(err, vector.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
