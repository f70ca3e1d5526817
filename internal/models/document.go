// Package models defines core data structures for documents, chunks, and retrieval results.
package models

import "time"

// Status is the lifecycle state of an uploaded document.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal, forward-only
// lifecycle step: queued -> processing -> completed|failed, with failed also
// reachable directly from queued.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Document is an upload ledger record. It is created when an upload is
// accepted and mutated only by the ingestion pipeline as it advances.
type Document struct {
	ID           string    `json:"id" db:"id"`
	Filename     string    `json:"filename" db:"filename"`
	StoredPath   string    `json:"stored_path,omitempty" db:"stored_path"`
	SizeBytes    int64     `json:"size_bytes" db:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
	Status       Status    `json:"status" db:"status"`
	Pages        int       `json:"pages" db:"pages"`
	Chunks       int       `json:"chunks" db:"chunks"`
	ProcessingMS int64     `json:"processing_ms" db:"processing_ms"`
	Error        string    `json:"error,omitempty" db:"error"`
}
