// Package main is the UniGPT CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unigpt/unigpt/internal/answer"
	"github.com/unigpt/unigpt/internal/config"
	"github.com/unigpt/unigpt/internal/embedding"
	"github.com/unigpt/unigpt/internal/extract"
	"github.com/unigpt/unigpt/internal/fileid"
	"github.com/unigpt/unigpt/internal/files"
	"github.com/unigpt/unigpt/internal/ingest"
	"github.com/unigpt/unigpt/internal/ledger"
	"github.com/unigpt/unigpt/internal/models"
	"github.com/unigpt/unigpt/internal/retrieve"
	"github.com/unigpt/unigpt/internal/server"
	"github.com/unigpt/unigpt/internal/vector"
	"github.com/unigpt/unigpt/internal/watcher"
	"github.com/unigpt/unigpt/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/unigpt/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// uses the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys may live in a local .env file.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "uploads":
		runUploads()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("unigpt version %s\n", version)
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

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	pipeline := components.Pipeline
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					logger.Warn("watch read file failed", zap.String("path", path), zap.Error(err))
					return
				}
				doc, err := pipeline.Ingest(context.Background(), fileid.DocID(path), filepath.Base(path), path, content)
				if err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
					return
				}
				if doc.Status == models.StatusFailed {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.String("error", doc.Error))
				}
			},
			func(path string) {
				if err := pipeline.Remove(context.Background(), fileid.DocID(path)); err != nil {
					logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Pipeline,
		components.Generator,
		components.Ledger,
		components.Index,
		components.Files,
		cfg,
		logger,
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
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: unigpt ingest [flags] <file.pdf> [<file.pdf>...]")
		os.Exit(1)
	}

	cfg, components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	exitCode := 0
	for _, path := range fs.Args() {
		abs, err := filepath.Abs(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
			continue
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
			continue
		}
		doc, err := components.Pipeline.Ingest(context.Background(), fileid.DocID(abs), filepath.Base(abs), abs, content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
			continue
		}
		if doc.Status == models.StatusFailed {
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, doc.Error)
			exitCode = 1
			continue
		}
		fmt.Printf("Ingested %s: %d pages, %d chunks (%dms)\n",
			doc.Filename, doc.Pages, doc.Chunks, doc.ProcessingMS)
	}
	saveIndex(cfg, components, logger)
	os.Exit(exitCode)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = config default)")
	showSources := fs.Bool("sources", false, "print the retrieved sources")
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: unigpt ask [flags] <question>")
		os.Exit(1)
	}

	_, components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	result, err := components.Generator.Answer(context.Background(), question, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(result.Answer)
	if *showSources && len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Sources {
			fmt.Printf("  %s chunk %d (score %.3f)\n", src.Source, src.Ordinal, src.Score)
		}
	}
}

func runUploads() {
	fs := flag.NewFlagSet("uploads", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 50, "maximum number of records")
	_ = fs.Parse(os.Args[2:])

	_, components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	docs, err := components.Ledger.List(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		fmt.Println("No uploads.")
		return
	}
	for _, doc := range docs {
		line := fmt.Sprintf("%s  %-10s  %s  pages=%d chunks=%d",
			doc.UploadedAt.Format("2006-01-02 15:04:05"), doc.Status, doc.Filename, doc.Pages, doc.Chunks)
		if doc.Error != "" {
			line += "  error=" + doc.Error
		}
		fmt.Println(line)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	stats, err := components.Ledger.Stats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Documents:         %d\n", stats.TotalDocuments)
	fmt.Printf("Chunks:            %d\n", stats.TotalChunks)
	fmt.Printf("Pages:             %d\n", stats.TotalPages)
	fmt.Printf("Vector index size: %d\n", components.Index.Size())
	fmt.Printf("Avg processing:    %.0fms\n", stats.AvgProcessingMS)
	for status, n := range stats.ByStatus {
		fmt.Printf("  %-12s %d\n", status, n)
	}
	if diskBytes, err := files.DiskUsageBytes(
		cfg.Storage.DatabasePath,
		cfg.Storage.VectorIndexPath,
		cfg.Storage.UploadDir,
	); err == nil {
		fmt.Printf("Disk usage:        %.1f MB\n", float64(diskBytes)/(1024*1024))
	}
}

// Components holds everything the commands need, with a single Close.
type Components struct {
	Ledger    ledger.Ledger
	Files     *files.Store
	Embedder  embedding.Embedder
	Index     vector.Index
	Pipeline  *ingest.Pipeline
	Generator *answer.Generator
}

// Close releases resources in reverse dependency order.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	l, err := ledger.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	store, err := files.NewStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Warn("OPENAI_API_KEY not set, falling back to mock embedder")
			embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		} else {
			embedder, err = embedding.NewOpenAIEmbedder(apiKey, cfg.Embedding.Model,
				cfg.Embedding.Dimensions, cfg.Embedding.MaxInputChars)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize embedder: %w", err)
			}
		}
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	index, err := vector.NewMemory(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := index.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized", zap.Int("size", index.Size()))

	pipeline := ingest.NewPipeline(l, extract.NewExtractor(), embedder, index, cfg,
		ingest.WithLogger(logger))
	retriever := retrieve.NewRetriever(embedder, index, cfg, retrieve.WithLogger(logger))

	genKey := os.Getenv("GENERATION_API_KEY")
	if genKey == "" {
		genKey = os.Getenv("OPENAI_API_KEY")
	}
	llm := answer.NewOpenAIClient(genKey, cfg.Generation.BaseURL, cfg.Generation.Model,
		cfg.Generation.Temperature, cfg.Generation.MaxTokens, cfg.Generation.Timeout())
	generator := answer.NewGenerator(retriever, llm, cfg.Retrieval.TopK,
		answer.WithLogger(logger))

	return &Components{
		Ledger:    l,
		Files:     store,
		Embedder:  embedder,
		Index:     index,
		Pipeline:  pipeline,
		Generator: generator,
	}, nil
}

// mustComponents loads config, builds a logger, and initializes components,
// exiting on any failure. Used by the one-shot commands.
func mustComponents(configPath string) (*config.Config, *Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize components: %v\n", err)
		os.Exit(1)
	}
	return cfg, components, logger
}

// saveIndex persists the vector index snapshot after one-shot ingestion.
func saveIndex(cfg *config.Config, components *Components, logger *zap.Logger) {
	if cfg.Storage.VectorIndexPath == "" {
		return
	}
	if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
		logger.Warn("vector index save failed",
			zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
	}
}

func printUsage() {
	fmt.Println(`unigpt - Ask questions about your PDF documents

Usage:
  unigpt server [flags]              Start the HTTP API server
  unigpt ingest [flags] <file.pdf>   Ingest PDF files into the index
  unigpt ask [flags] <question>      Ask a question about ingested documents
  unigpt uploads [flags]             List upload history
  unigpt status [flags]              Show corpus and storage status
  unigpt version                     Show version
  unigpt help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/unigpt/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path
  --top-k int        Number of chunks to retrieve (default from config)
  --sources          Print the retrieved sources with scores

Environment:
  OPENAI_API_KEY       API key for embeddings (and generation fallback)
  GENERATION_API_KEY   API key for the generation endpoint (e.g. Groq)

A config.yaml in the current directory takes precedence over the default path.`)
}
