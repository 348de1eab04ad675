package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/osusume/internal/models"
)

// Client talks to a running osusume server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Recommend posts a shopper message and returns the ranked results.
func (c *Client) Recommend(ctx context.Context, message string) ([]models.Item, error) {
	var out models.RecommendResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/recommend", models.RecommendRequest{Message: message}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Upsert sends items to the server for embedding and storage.
func (c *Client) Upsert(ctx context.Context, items []models.Item) (int, error) {
	var out models.UpsertResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/upsert", items, http.StatusCreated, &out); err != nil {
		return 0, err
	}
	return out.Upserted, nil
}

// Status fetches backend and storage status.
func (c *Client) Status(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
