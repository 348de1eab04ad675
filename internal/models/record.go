package models

// VectorRecord is a single entry handed to a vector store: the item id, its embedding,
// and the full item as metadata.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata Item
}

// Match is one ranked hit of a vector store query. Score is 1/(1+distance), so it lies in
// (0, 1] and higher is closer.
type Match struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Metadata Item    `json:"metadata"`
}

// RecommendRequest is the body of a recommendation request.
type RecommendRequest struct {
	Message string `json:"message"`
}

// RecommendResponse carries recommended items in rank order.
type RecommendResponse struct {
	Results []Item `json:"results"`
}

// UpsertResponse reports how many items were upserted.
type UpsertResponse struct {
	Upserted int `json:"upserted"`
}

// AnalyticsSummary summarizes the ingested catalog.
type AnalyticsSummary struct {
	TotalItems int64          `json:"total_items"`
	ByCategory map[string]int `json:"by_category"`
}

// BackendStatus describes the vector store selected at startup.
type BackendStatus struct {
	Kind     string `json:"kind"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
	Path     string `json:"path,omitempty"`
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	Backend          BackendStatus     `json:"backend"`
	Vectors          int               `json:"vectors"`
	Dimensions       int               `json:"dimensions"`
	CatalogItems     int64             `json:"catalog_items"`
	DiskUsageBytes   int64             `json:"disk_usage_bytes"`
	WatchDirectories []string          `json:"watch_directories"`
	Config           map[string]string `json:"config,omitempty"`
}
