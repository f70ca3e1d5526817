// Package retrieve finds the indexed chunks most similar to a query and
// assembles them into a bounded context block for answer generation.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/unigpt/unigpt/internal/config"
	"github.com/unigpt/unigpt/internal/embedding"
	"github.com/unigpt/unigpt/internal/faults"
	"github.com/unigpt/unigpt/internal/models"
	"github.com/unigpt/unigpt/internal/vector"
)

// Retriever embeds queries and searches the vector index.
type Retriever struct {
	embedder embedding.Embedder
	index    vector.Index
	minScore float64
	budget   int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a retriever using the retrieval settings from cfg.
func NewRetriever(em embedding.Embedder, idx vector.Index, cfg *config.Config, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: em,
		index:    idx,
		minScore: cfg.Retrieval.MinScore,
		budget:   cfg.Retrieval.ContextBudget,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK chunks most similar to the query, ordered by
// descending similarity. Hits below the similarity floor are discarded; an
// empty or unindexed corpus yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, faults.New(faults.InvalidArgument, "query is empty")
	}
	if topK <= 0 {
		return nil, faults.New(faults.InvalidArgument, "topK must be positive (got %d)", topK)
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, faults.Wrap(faults.Embedding, err)
	}
	hits, err := r.index.Query(ctx, vec, topK)
	if err != nil {
		return nil, faults.Wrap(faults.Index, err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		if h.Score < r.minScore {
			continue
		}
		chunks = append(chunks, models.RetrievedChunk{
			DocumentID: h.DocumentID,
			Ordinal:    h.Ordinal,
			Text:       h.Text,
			Source:     h.Source,
			Score:      h.Score,
		})
	}
	r.logger.Debug("Retrieved chunks",
		zap.Int("requested", topK),
		zap.Int("returned", len(chunks)))
	return chunks, nil
}

// BuildContext joins retrieved chunks into a single context block, best match
// first, each tagged with its source. When the assembled text would exceed
// the character budget, whole chunks are dropped from the low-scoring end;
// a chunk is never truncated mid-text.
func (r *Retriever) BuildContext(chunks []models.RetrievedChunk) string {
	var (
		blocks []string
		used   int
	)
	for _, ch := range chunks {
		block := fmt.Sprintf("[source: %s chunk %d]\n%s", ch.Source, ch.Ordinal, ch.Text)
		cost := len([]rune(block))
		if len(blocks) > 0 {
			cost += 2 // separator
		}
		if r.budget > 0 && used+cost > r.budget {
			break
		}
		blocks = append(blocks, block)
		used += cost
	}
	return strings.Join(blocks, "\n\n")
}
