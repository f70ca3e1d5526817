package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Chunking.ChunkSize != 400 || cfg.Chunking.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d, want 400/200", cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore != 0.10 {
		t.Errorf("MinScore = %v, want 0.10", cfg.Retrieval.MinScore)
	}
	if cfg.Generation.Temperature != 0.1 {
		t.Errorf("Temperature = %v, want 0.1", cfg.Generation.Temperature)
	}
	if cfg.Generation.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", cfg.Generation.MaxTokens)
	}
	if cfg.Embedding.Provider != "openai" || cfg.Embedding.Dimensions != 1536 {
		t.Errorf("embedding defaults = %s/%d", cfg.Embedding.Provider, cfg.Embedding.Dimensions)
	}
}

func TestLoad_explicitZeroKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
chunking:
  chunk_overlap: 0
retrieval:
  min_score: 0
generation:
  temperature: 0
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunking.ChunkOverlap != 0 {
		t.Errorf("ChunkOverlap = %d, want 0", cfg.Chunking.ChunkOverlap)
	}
	if cfg.Retrieval.MinScore != 0 {
		t.Errorf("MinScore = %v, want 0", cfg.Retrieval.MinScore)
	}
	if cfg.Generation.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", cfg.Generation.Temperature)
	}
	// Untouched sections still carry defaults.
	if cfg.Chunking.ChunkSize != 400 {
		t.Errorf("ChunkSize = %d, want 400", cfg.Chunking.ChunkSize)
	}
	if cfg.Generation.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", cfg.Generation.MaxTokens)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 9090
storage:
  database_path: ./data/uploads.db
chunking:
  chunk_size: 500
  chunk_overlap: 100
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("expected debug true")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.ChunkOverlap != 100 {
		t.Errorf("chunking = %d/%d, want 500/100", cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	}
	want := filepath.Join(dir, "data", "uploads.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	// Defaults still applied for unset fields.
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.Retrieval.TopK)
	}
}

func TestLoad_invalidOverlap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "chunking:\n  chunk_size: 100\n  chunk_overlap: 100\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for overlap >= chunk size")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
