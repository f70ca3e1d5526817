package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unigpt/unigpt/internal/config"
	"github.com/unigpt/unigpt/internal/embedding"
	"github.com/unigpt/unigpt/internal/faults"
	"github.com/unigpt/unigpt/internal/ledger"
	"github.com/unigpt/unigpt/internal/models"
	"github.com/unigpt/unigpt/internal/vector"
)

// Extractor produces per-page plain text from raw PDF bytes.
type Extractor interface {
	Extract(content []byte) ([]string, error)
}

// Pipeline drives a document through extract, chunk, embed and index,
// recording lifecycle transitions in the upload ledger. Processing failures
// are recorded on the document rather than returned: Ingest only errors when
// the document could not be registered at all.
type Pipeline struct {
	ledger       ledger.Ledger
	extractor    Extractor
	chunker      *Chunker
	embedder     embedding.Embedder
	index        vector.Index
	embedTimeout time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(l ledger.Ledger, ex Extractor, em embedding.Embedder, idx vector.Index, cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		ledger:       l,
		extractor:    ex,
		chunker:      NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		embedder:     em,
		index:        idx,
		embedTimeout: cfg.Embedding.Timeout(),
		logger:       zap.NewNop(),
		inflight:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest registers a document and processes it to a terminal status. An empty
// docID is replaced with a fresh UUID. The returned document reflects the
// terminal state, completed or failed. A non-nil error means the document was
// rejected before processing began (concurrent ingest of the same ID, or the
// ledger refused the record).
func (p *Pipeline) Ingest(ctx context.Context, docID, filename, storedPath string, content []byte) (*models.Document, error) {
	if docID == "" {
		docID = uuid.New().String()
	}
	if err := p.acquire(docID); err != nil {
		return nil, err
	}
	defer p.release(docID)

	doc := &models.Document{
		ID:         docID,
		Filename:   filename,
		StoredPath: storedPath,
		SizeBytes:  int64(len(content)),
	}
	if err := p.ledger.Create(ctx, doc); err != nil {
		// A known ID means a fresh run over an existing document, as when
		// a watched file changes on disk.
		if _, getErr := p.ledger.Get(ctx, docID); getErr != nil {
			return nil, fmt.Errorf("register document %s: %w", docID, err)
		}
		if err := p.ledger.Requeue(ctx, doc); err != nil {
			return nil, fmt.Errorf("requeue document %s: %w", docID, err)
		}
	}
	start := time.Now()
	if err := p.ledger.MarkProcessing(ctx, docID); err != nil {
		return p.fail(ctx, doc, "ledger", err), nil
	}
	doc.Status = models.StatusProcessing

	// Re-ingest of a known ID must not leave stale chunks behind.
	if err := p.index.DeleteDocument(ctx, docID); err != nil {
		return p.fail(ctx, doc, "index", err), nil
	}

	pages, err := p.extractor.Extract(content)
	if err != nil {
		return p.fail(ctx, doc, "extract", err), nil
	}
	doc.Pages = len(pages)

	chunks := p.chunker.Chunk(docID, strings.Join(pages, "\n"))
	if len(chunks) == 0 {
		return p.fail(ctx, doc, "chunk", faults.New(faults.Extraction, "document produced no chunks")), nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embedCtx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	vectors, err := p.embedder.EmbedBatch(embedCtx, texts)
	cancel()
	if err != nil {
		return p.fail(ctx, doc, "embed", faults.Wrap(faults.Embedding, err)), nil
	}

	for i, ch := range chunks {
		if err := p.index.Upsert(ctx, docID, ch.Ordinal, vectors[i], ch.Text, filename); err != nil {
			p.rollback(ctx, docID)
			return p.fail(ctx, doc, "index", faults.Wrap(faults.Index, err)), nil
		}
	}

	elapsed := time.Since(start).Milliseconds()
	if err := p.ledger.Complete(ctx, docID, doc.Pages, len(chunks), elapsed); err != nil {
		p.rollback(ctx, docID)
		return p.fail(ctx, doc, "ledger", err), nil
	}
	doc.Status = models.StatusCompleted
	doc.Chunks = len(chunks)
	doc.ProcessingMS = elapsed

	p.logger.Info("Document ingested",
		zap.String("id", docID),
		zap.String("filename", filename),
		zap.Int("pages", doc.Pages),
		zap.Int("chunks", doc.Chunks),
		zap.Int64("elapsed_ms", elapsed))
	return doc, nil
}

// Remove deletes a document's chunks from the index. The ledger record is
// kept as history.
func (p *Pipeline) Remove(ctx context.Context, docID string) error {
	return p.index.DeleteDocument(ctx, docID)
}

func (p *Pipeline) acquire(docID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[docID]; busy {
		return faults.New(faults.InvalidArgument, "document %s is already being ingested", docID)
	}
	p.inflight[docID] = struct{}{}
	return nil
}

func (p *Pipeline) release(docID string) {
	p.mu.Lock()
	delete(p.inflight, docID)
	p.mu.Unlock()
}

// fail records a terminal failure on the document. The phase prefix tells the
// reader where in the pipeline the document died.
func (p *Pipeline) fail(ctx context.Context, doc *models.Document, phase string, cause error) *models.Document {
	msg := fmt.Sprintf("%s: %v", phase, cause)
	doc.Status = models.StatusFailed
	doc.Error = msg
	if err := p.ledger.Fail(context.WithoutCancel(ctx), doc.ID, msg); err != nil {
		p.logger.Warn("Failed to record ingestion failure",
			zap.String("id", doc.ID),
			zap.Error(err))
	}
	p.logger.Warn("Document ingestion failed",
		zap.String("id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.String("phase", phase),
		zap.Error(cause))
	return doc
}

// rollback removes any chunks already written for the document so partial
// ingests never become visible to retrieval.
func (p *Pipeline) rollback(ctx context.Context, docID string) {
	if err := p.index.DeleteDocument(context.WithoutCancel(ctx), docID); err != nil {
		p.logger.Warn("Rollback failed",
			zap.String("id", docID),
			zap.Error(err))
	}
}
