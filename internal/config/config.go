// Package config provides configuration loading and structs for the osusume server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Remote    RemoteConfig    `yaml:"remote"`
	Describe  DescribeConfig  `yaml:"describe"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig holds catalog drop directory settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS origins for browser frontends
}

// StorageConfig holds paths for the catalog database and vector index files.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	IndexPath      string `yaml:"index_path"`
	MockRemotePath string `yaml:"mock_remote_path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // onnx, openai, mock
	ModelPath  string `yaml:"model_path"`
	Model      string `yaml:"model"` // remote model name for provider openai
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	APIKey     string `yaml:"-"`
}

// VectorConfig selects the vector store backend.
type VectorConfig struct {
	Backend string `yaml:"backend"` // auto, local, remote
}

// RemoteConfig holds connection settings for the managed similarity-search service.
type RemoteConfig struct {
	Address        string        `yaml:"address"`
	Collection     string        `yaml:"collection"`
	TLS            bool          `yaml:"tls"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxRetries     uint64        `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	APIKey         string        `yaml:"-"`
}

// HasCredentials reports whether enough connection settings are present to try the live service.
func (r *RemoteConfig) HasCredentials() bool {
	return r.Address != "" && r.APIKey != ""
}

// DescribeConfig holds creative description generation settings.
type DescribeConfig struct {
	Provider  string        `yaml:"provider"` // openai, anthropic, none
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
	APIKey    string        `yaml:"-"`
}

// Environment variables consulted by ApplyEnv.
const (
	EnvRemoteAddress   = "OSUSUME_QDRANT_ADDR"
	EnvRemoteAPIKey    = "QDRANT_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
)

// Load reads and parses the config file at path, expands paths, applies defaults,
// and overlays secrets from the environment (after loading .env files next to the config).
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.MockRemotePath = expandPath(cfg.Storage.MockRemotePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	LoadDotEnv(configDir)
	ApplyEnv(&cfg, os.Getenv)
	return &cfg, nil
}

// LoadDotEnv loads .env.local and .env from dir into the process environment.
// Missing files are ignored and variables already set are not overridden.
func LoadDotEnv(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// ApplyEnv overlays credentials and addresses from getenv onto cfg. Secrets are never
// read from the YAML file.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvRemoteAddress); v != "" {
		cfg.Remote.Address = v
	}
	cfg.Remote.APIKey = getenv(EnvRemoteAPIKey)
	switch cfg.Describe.Provider {
	case "anthropic":
		cfg.Describe.APIKey = getenv(EnvAnthropicAPIKey)
	case "openai":
		cfg.Describe.APIKey = getenv(EnvOpenAIAPIKey)
	}
	if cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = getenv(EnvOpenAIAPIKey)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
