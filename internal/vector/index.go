// Package vector provides the chunk vector index and similarity search.
package vector

import "context"

// Hit is a single similarity search result.
type Hit struct {
	DocumentID string
	Ordinal    int
	Text       string
	Source     string
	Score      float64 // cosine similarity for normalized vectors; higher is more relevant
}

// Index stores chunk vectors with their text and supports nearest-neighbor
// queries. Implementations must be safe for concurrent use.
type Index interface {
	// Upsert stores a chunk vector under (documentID, ordinal). Re-upserting
	// the same identity replaces the prior record instead of duplicating it.
	Upsert(ctx context.Context, documentID string, ordinal int, vec []float32, text, source string) error
	// Query returns the k nearest chunks by similarity, highest first. Ties
	// are broken by insertion order (earlier-indexed chunk wins).
	Query(ctx context.Context, vec []float32, k int) ([]*Hit, error)
	// DeleteDocument removes every chunk belonging to documentID.
	DeleteDocument(ctx context.Context, documentID string) error
	// Size returns the number of stored chunk vectors.
	Size() int
	Save(path string) error
	Load(path string) error
	Close() error
}
