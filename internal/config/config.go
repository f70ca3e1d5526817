// Package config provides configuration loading and structs for the UniGPT server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the ledger database, the vector index
// snapshot, and saved upload files.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	UploadDir       string `yaml:"upload_dir"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "openai" or "mock"
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	MaxInputChars  int    `yaml:"max_input_chars"`
	CacheSize      int    `yaml:"cache_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call embedding deadline.
func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChunkingConfig holds document splitting settings (in characters).
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds similarity search and context assembly settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// MinScore is the cosine similarity floor below which hits are discarded.
	MinScore float64 `yaml:"min_score"`
	// ContextBudget is the maximum assembled context size in characters.
	ContextBudget int `yaml:"context_budget"`
}

// GenerationConfig holds LLM settings for answer generation.
type GenerationConfig struct {
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"` // OpenAI-compatible endpoint; defaults to Groq
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the per-call generation deadline.
func (c *GenerationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WatchConfig holds PDF drop-directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed, or if a value is out of range.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot repair.
func Validate(cfg *Config) error {
	if cfg.Chunking.ChunkOverlap < 0 || cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		return fmt.Errorf("chunk_overlap must satisfy 0 <= overlap < chunk_size (got %d/%d)",
			cfg.Chunking.ChunkOverlap, cfg.Chunking.ChunkSize)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive (got %d)", cfg.Retrieval.TopK)
	}
	return nil
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
