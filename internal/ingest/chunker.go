// Package ingest turns uploaded PDFs into embedded, indexed chunks.
package ingest

import (
	"github.com/unigpt/unigpt/internal/models"
)

// Chunker splits text into overlapping fixed-size character windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(size, overlap int) *Chunker {
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into DocumentChunks. Chunk i starts at i*(size-overlap)
// and spans size characters; the final chunk is truncated to the remaining
// text and always kept, so no tail content is lost. Empty input yields no
// chunks. Characters are runes, so multi-byte text never splits mid-codepoint.
func (c *Chunker) Chunk(docID, text string) []models.DocumentChunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	if step <= 0 {
		step = 1
	}
	var chunks []models.DocumentChunk
	for start, ordinal := 0, 0; ; start, ordinal = start+step, ordinal+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		span := string(runes[start:end])
		chunks = append(chunks, models.DocumentChunk{
			DocumentID: docID,
			Ordinal:    ordinal,
			Text:       span,
			Length:     end - start,
		})
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
