// Package main is the osusume CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/cli"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/describe"
	"github.com/hyperjump/osusume/internal/embedding"
	"github.com/hyperjump/osusume/internal/ingest"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/server"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/internal/vector"
	"github.com/hyperjump/osusume/internal/watcher"
	"github.com/hyperjump/osusume/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/osusume/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence; when neither exists the built-in defaults are used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			if cwd, err := os.Getwd(); err == nil {
				config.LoadDotEnv(cwd)
			}
			config.ApplyEnv(cfg, os.Getenv)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// joinArgs joins positional args so multi-word messages work with or without quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that appear after positional arguments to the front, since
// flag.Parse stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("osusume version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	pipeline := components.Ingest
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			n, err := pipeline.IngestFile(context.Background(), path)
			if err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("catalog file ingested", zap.String("path", path), zap.Int("items", n))
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Recommend,
		components.Ingest,
		components.Store,
		components.Selection,
		components.Catalog,
		cfg,
		logger,
		watchSvc,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: osusume recommend [flags] <message>\n\n")
	fmt.Fprintf(fs.Output(), "Message is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
}

func runRecommend() {
	args := reorderArgs(os.Args[2:])
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = run the pipeline directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(args)

	message := joinArgs(fs.Args())
	if message == "" {
		printRecommendUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	var items []models.Item
	if *serverURL != "" {
		items, err = cli.NewClient(*serverURL).Recommend(ctx, message)
	} else {
		err = withComponents(*configPath, func(c *Components) error {
			items, err = c.Recommend.Recommend(ctx, message)
			return err
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, items, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest() {
	args := reorderArgs(os.Args[2:])
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = write to storage directly)")
	recursive := fs.Bool("recursive", true, "descend into subdirectories when ingesting a directory")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: osusume ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if *serverURL != "" {
		files, err := catalogFiles(path, info.IsDir(), *recursive)
		if err != nil {
			fmt.Printf("Failed to list catalog files: %v\n", err)
			os.Exit(1)
		}
		client := cli.NewClient(*serverURL)
		loader := catalog.NewLoader()
		total := 0
		for _, f := range files {
			items, err := loader.Load(f)
			if err != nil {
				fmt.Printf("Failed to load %s: %v\n", f, err)
				os.Exit(1)
			}
			n, err := client.Upsert(ctx, items)
			if err != nil {
				fmt.Printf("Upsert failed for %s: %v\n", f, err)
				os.Exit(1)
			}
			total += n
		}
		fmt.Printf("Upserted %d item(s) from %d file(s)\n", total, len(files))
		return
	}

	err = withComponents(*configPath, func(c *Components) error {
		if info.IsDir() {
			n, err := c.Ingest.IngestDirectory(ctx, path, *recursive)
			if err == nil {
				fmt.Printf("Ingested %d file(s) from %s\n", n, path)
			}
			return err
		}
		n, err := c.Ingest.IngestFile(ctx, path)
		if err == nil {
			fmt.Printf("Upserted %d item(s)\n", n)
		}
		return err
	})
	if err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
}

// catalogFiles returns path itself for a file, or the supported catalog files under a directory.
func catalogFiles(path string, isDir, recursive bool) ([]string, error) {
	if !isDir {
		return []string{path}, nil
	}
	var files []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if catalog.IsSupported(p) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = inspect storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	var status *models.StatusResponse
	if *serverURL != "" {
		status, err = cli.NewClient(*serverURL).Status(ctx)
	} else {
		err = withComponents(*configPath, func(c *Components) error {
			status, err = c.status(ctx)
			return err
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "path of the config file to write")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*path, *force); err != nil {
		fmt.Printf("Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *path)
}

// writeDefaultConfig saves a config populated with defaults to path. Credentials are never
// written; they come from the environment or .env files.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

// withComponents loads config, initializes every component and runs fn against them.
func withComponents(configPath string, fn func(*Components) error) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(components)
}

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Embedder  embedding.Embedder
	Store     vector.Store
	Selection vector.Selection
	Catalog   storage.Catalog
	Ingest    *ingest.Pipeline
	Recommend *recommend.Pipeline
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Embedder != nil {
		embedding.LogCacheStats(c.Embedder, c.Logger)
		_ = c.Embedder.Close()
	}
}

func (c *Components) status(ctx context.Context) (*models.StatusResponse, error) {
	vectors, err := c.Store.Size(ctx)
	if err != nil {
		return nil, err
	}
	items, err := c.Catalog.CountItems(ctx)
	if err != nil {
		return nil, err
	}
	st := c.Config.Storage
	paths := append(storage.DatabaseFiles(st.DatabasePath), storage.IndexFiles(st.IndexPath)...)
	paths = append(paths, st.MockRemotePath)
	diskBytes, _ := storage.DiskUsageBytes(paths...)
	return &models.StatusResponse{
		Backend: models.BackendStatus{
			Kind:     string(c.Selection.Kind),
			Degraded: c.Selection.Degraded,
			Reason:   c.Selection.Reason,
			Path:     vector.StorePath(c.Store),
		},
		Vectors:          vectors,
		Dimensions:       c.Store.Dimensions(),
		CatalogItems:     items,
		DiskUsageBytes:   diskBytes,
		WatchDirectories: c.Config.Watch.Directories,
		Config: map[string]string{
			"embedding_provider": c.Config.Embedding.Provider,
			"describe_provider":  c.Config.Describe.Provider,
			"vector_backend":     c.Config.Vector.Backend,
			"database_path":      st.DatabasePath,
			"index_path":         st.IndexPath,
			"mock_remote_path":   st.MockRemotePath,
		},
	}, nil
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}

	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	store, sel, err := vector.Negotiate(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	c.Store, c.Selection = store, sel

	cat, err := storage.NewSQLiteCatalog(cfg.Storage.DatabasePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	c.Catalog = cat

	describer, err := describe.New(&cfg.Describe, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize describer: %w", err)
	}

	c.Ingest = ingest.NewPipeline(embedder, store,
		ingest.WithLogger(logger),
		ingest.WithCatalog(cat))
	recOpts := []recommend.Option{
		recommend.WithLogger(logger),
		recommend.WithDescribeTimeout(cfg.Describe.Timeout),
	}
	if describer != nil {
		recOpts = append(recOpts, recommend.WithDescriber(describer))
	}
	c.Recommend = recommend.NewPipeline(embedder, store, recOpts...)
	return c, nil
}

func printUsage() {
	fmt.Println(`osusume - Product recommendations from a shopper's message

Usage:
  osusume server [flags]                 Start the HTTP server
  osusume recommend [flags] <message>    Recommend products for a message
  osusume ingest [flags] <file-or-dir>   Ingest a CSV or XLSX product catalog
  osusume status [flags]                 Show vector backend and storage status
  osusume init [--config path] [--force] Write a config file with default settings
  osusume version                        Show version
  osusume help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/osusume/config.yaml)
  --debug            Enable debug logging

Recommend / Ingest / Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to run without a server.
  --output string    Output format: text or json (recommend, status)
  --recursive        Descend into subdirectories (ingest, default: true)

Environment:
  OSUSUME_QDRANT_ADDR            Remote vector store address (host:port)
  QDRANT_API_KEY                 Remote vector store credentials
  OPENAI_API_KEY                 OpenAI descriptions and embeddings
  ANTHROPIC_API_KEY              Anthropic descriptions

Examples:
  osusume server
  osusume ingest data/products.csv
  osusume recommend a cozy reading chair for a small apartment
  osusume recommend --output json "walnut side table"
  osusume status --server ""`)
}
