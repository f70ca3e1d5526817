package models

// DocumentChunk is a contiguous text span cut from one document. Immutable
// once created; (DocumentID, Ordinal) is its stable identity in the vector
// index.
type DocumentChunk struct {
	DocumentID string `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
	Length     int    `json:"length"`
}

// RetrievedChunk is a chunk returned by similarity search, together with its
// score and the source filename used for citation. Ephemeral; never persisted.
type RetrievedChunk struct {
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}
