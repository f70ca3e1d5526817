package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/unigpt/unigpt/internal/models"
	"github.com/unigpt/unigpt/pkg/utils"
)

// Error messages recorded on failed documents are capped so a pathological
// provider error cannot bloat the ledger.
const maxErrorLen = 1024

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		stored_path TEXT,
		size_bytes INTEGER NOT NULL,
		uploaded_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('queued', 'processing', 'completed', 'failed')),
		pages INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		processing_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);
	CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Create inserts a new record. Status is forced to queued and the upload
// timestamp is set if unset.
func (l *SQLiteLedger) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is empty")
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.Status = models.StatusQueued

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO uploads (id, filename, stored_path, size_bytes, uploaded_at, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.StoredPath, doc.SizeBytes, doc.UploadedAt, doc.Status,
	)
	return err
}

// Get returns a record by ID.
func (l *SQLiteLedger) Get(ctx context.Context, id string) (*models.Document, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, filename, stored_path, size_bytes, uploaded_at, status, pages, chunks, processing_ms, error
		 FROM uploads WHERE id = ?`, id,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	return doc, err
}

// MarkProcessing transitions queued -> processing. Returns an error if the
// document is not in status queued.
func (l *SQLiteLedger) MarkProcessing(ctx context.Context, id string) error {
	return l.transition(ctx, id, models.StatusProcessing,
		`UPDATE uploads SET status = ? WHERE id = ? AND status = ?`,
		models.StatusProcessing, id, models.StatusQueued)
}

// Complete transitions processing -> completed and records the outcome.
func (l *SQLiteLedger) Complete(ctx context.Context, id string, pages, chunks int, processingMS int64) error {
	return l.transition(ctx, id, models.StatusCompleted,
		`UPDATE uploads SET status = ?, pages = ?, chunks = ?, processing_ms = ? WHERE id = ? AND status = ?`,
		models.StatusCompleted, pages, chunks, processingMS, id, models.StatusProcessing)
}

// Fail transitions queued|processing -> failed with a human-readable message.
func (l *SQLiteLedger) Fail(ctx context.Context, id string, message string) error {
	return l.transition(ctx, id, models.StatusFailed,
		`UPDATE uploads SET status = ?, error = ? WHERE id = ? AND status IN (?, ?)`,
		models.StatusFailed, utils.Truncate(message, maxErrorLen), id, models.StatusQueued, models.StatusProcessing)
}

// Requeue resets an existing record to queued for a fresh ingestion run. The
// filename, stored path, size and upload timestamp are refreshed; counters
// and any previous error are cleared.
func (l *SQLiteLedger) Requeue(ctx context.Context, doc *models.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.Status = models.StatusQueued
	result, err := l.db.ExecContext(ctx,
		`UPDATE uploads
		 SET filename = ?, stored_path = ?, size_bytes = ?, uploaded_at = ?,
		     status = ?, pages = 0, chunks = 0, processing_ms = 0, error = ''
		 WHERE id = ?`,
		doc.Filename, doc.StoredPath, doc.SizeBytes, doc.UploadedAt, doc.Status, doc.ID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document not found: %s", doc.ID)
	}
	return nil
}

// transition runs a conditional update; zero affected rows means the document
// is missing or its current status does not allow the move.
func (l *SQLiteLedger) transition(ctx context.Context, id string, to models.Status, query string, args ...interface{}) error {
	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		doc, getErr := l.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("illegal status transition %s -> %s for document %s", doc.Status, to, id)
	}
	return nil
}

// List returns up to limit records, most recent upload first.
func (l *SQLiteLedger) List(ctx context.Context, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, filename, stored_path, size_bytes, uploaded_at, status, pages, chunks, processing_ms, error
		 FROM uploads ORDER BY uploaded_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Stats returns aggregate counters: totals, per-status counts, and the average
// processing time over completed documents.
func (l *SQLiteLedger) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{ByStatus: make(map[string]int)}

	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM uploads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.TotalDocuments += int64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(chunks), 0), COALESCE(SUM(pages), 0), COALESCE(AVG(processing_ms), 0)
		 FROM uploads WHERE status = ?`, models.StatusCompleted,
	).Scan(&stats.TotalChunks, &stats.TotalPages, &stats.AvgProcessingMS)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(s scanner) (*models.Document, error) {
	var doc models.Document
	err := s.Scan(&doc.ID, &doc.Filename, &doc.StoredPath, &doc.SizeBytes, &doc.UploadedAt,
		&doc.Status, &doc.Pages, &doc.Chunks, &doc.ProcessingMS, &doc.Error)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
