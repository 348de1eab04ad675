package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/osusume/data/db/catalog.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/osusume/data/indices/products.index"
	}
	if cfg.Storage.MockRemotePath == "" {
		cfg.Storage.MockRemotePath = "/usr/local/var/osusume/data/remote_mock/vectors.json"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/osusume/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "auto"
	}
	if cfg.Remote.Collection == "" {
		cfg.Remote.Collection = "products"
	}
	if cfg.Remote.ConnectTimeout == 0 {
		cfg.Remote.ConnectTimeout = 5 * time.Second
	}
	if cfg.Remote.MaxRetries == 0 {
		cfg.Remote.MaxRetries = 3
	}
	if cfg.Remote.RetryBackoff == 0 {
		cfg.Remote.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.Describe.Provider == "" {
		cfg.Describe.Provider = "openai"
	}
	if cfg.Describe.Timeout == 0 {
		cfg.Describe.Timeout = 10 * time.Second
	}
	if cfg.Describe.MaxTokens == 0 {
		cfg.Describe.MaxTokens = 200
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".csv", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
