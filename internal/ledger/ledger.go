// Package ledger tracks uploaded documents and their processing lifecycle.
package ledger

import (
	"context"

	"github.com/unigpt/unigpt/internal/models"
)

// Ledger persists Document records and enforces forward-only status
// transitions (queued -> processing -> completed|failed).
type Ledger interface {
	// Create inserts a new record in status queued.
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	// MarkProcessing moves a queued document to processing.
	MarkProcessing(ctx context.Context, id string) error
	// Complete moves a processing document to completed and records the
	// page count, chunk count, and elapsed processing time.
	Complete(ctx context.Context, id string, pages, chunks int, processingMS int64) error
	// Fail moves a queued or processing document to failed with a message.
	Fail(ctx context.Context, id string, message string) error
	// Requeue resets an existing record to queued for a fresh ingestion
	// run, clearing counters and any previous error.
	Requeue(ctx context.Context, doc *models.Document) error
	// List returns documents, most recent upload first.
	List(ctx context.Context, limit int) ([]*models.Document, error)
	// Stats returns aggregate counters over all records.
	Stats(ctx context.Context) (*models.Stats, error)
	Close() error
}
