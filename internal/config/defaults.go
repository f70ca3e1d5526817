package config

// Default returns a Config populated with every default value. Load
// unmarshals the config file over this, so an explicit zero in the file
// (chunk_overlap: 0, min_score: 0) is kept rather than replaced.
func Default() *Config {
	recursive := true
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageConfig{
			DatabasePath:    "/usr/local/var/unigpt/data/uploads.db",
			VectorIndexPath: "/usr/local/var/unigpt/data/index.bin",
			UploadDir:       "/usr/local/var/unigpt/data/uploads",
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			Dimensions:     1536,
			MaxInputChars:  8000,
			CacheSize:      10000,
			TimeoutSeconds: 30,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    400,
			ChunkOverlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:          3,
			MinScore:      0.10,
			ContextBudget: 6000,
		},
		Generation: GenerationConfig{
			Model:          "llama-3.1-8b-instant",
			BaseURL:        "https://api.groq.com/openai/v1",
			Temperature:    0.1,
			MaxTokens:      1024,
			TimeoutSeconds: 60,
		},
		Watch: WatchConfig{
			Recursive: &recursive,
		},
	}
}
