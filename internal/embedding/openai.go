package embedding

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/unigpt/unigpt/internal/faults"
	"github.com/unigpt/unigpt/internal/vector"
)

// OpenAIEmbedder produces embeddings through the OpenAI embeddings API.
// Vectors are L2-normalized so inner product equals cosine similarity.
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	dimensions    int
	maxInputChars int
}

// NewOpenAIEmbedder creates an embedder for the given model. dimensions must
// match the model's output width; maxInputChars bounds accepted input size
// (inputs beyond it are rejected, never silently truncated).
func NewOpenAIEmbedder(apiKey, model string, dimensions, maxInputChars int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, faults.New(faults.Embedding, "embedding API key not set")
	}
	if dimensions <= 0 {
		return nil, faults.New(faults.Embedding, "dimensions must be positive")
	}
	return &OpenAIEmbedder{
		client:        openai.NewClient(apiKey),
		model:         model,
		dimensions:    dimensions,
		maxInputChars: maxInputChars,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one API call, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, faults.New(faults.Embedding, "text %d is empty", i)
		}
		if e.maxInputChars > 0 && len(text) > e.maxInputChars {
			return nil, faults.New(faults.Embedding, "text %d exceeds input budget: %d > %d chars",
				i, len(text), e.maxInputChars)
		}
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, faults.New(faults.Embedding, "embedding request: %v", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, faults.New(faults.Embedding, "provider returned %d embeddings for %d texts",
			len(resp.Data), len(texts))
	}
	// Responses may arrive out of order; the Index field is authoritative.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, faults.New(faults.Embedding, "provider returned out-of-range index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		vector.Normalize(vec)
		vectors[d.Index] = vec
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, faults.New(faults.Embedding, "provider returned no embedding for text %d", i)
		}
		if len(vec) != e.dimensions {
			return nil, faults.New(faults.Embedding, "embedding dimension mismatch: got %d, expected %d",
				len(vec), e.dimensions)
		}
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for the API-backed embedder.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
