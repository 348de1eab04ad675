package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/osusume/internal/models"
)

func TestClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/recommend":
			var req models.RecommendRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(models.RecommendResponse{Results: []models.Item{{ID: "x", Title: req.Message}}})
		case "/api/v1/upsert":
			var items []models.Item
			_ = json.NewDecoder(r.Body).Decode(&items)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(models.UpsertResponse{Upserted: len(items)})
		case "/api/v1/status":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"vector storage unavailable"}`))
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	ctx := context.Background()

	items, err := c.Recommend(ctx, "blue sofa")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "blue sofa" {
		t.Errorf("recommend: %+v", items)
	}

	n, err := c.Upsert(ctx, []models.Item{{ID: "1"}, {ID: "2"}})
	if err != nil || n != 2 {
		t.Errorf("upsert: n=%d err=%v", n, err)
	}

	_, err = c.Status(ctx)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("status: expected 503 error, got %v", err)
	}
}
