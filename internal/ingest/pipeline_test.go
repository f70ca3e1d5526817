package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/unigpt/unigpt/internal/config"
	"github.com/unigpt/unigpt/internal/embedding"
	"github.com/unigpt/unigpt/internal/faults"
	"github.com/unigpt/unigpt/internal/ledger"
	"github.com/unigpt/unigpt/internal/models"
	"github.com/unigpt/unigpt/internal/vector"
)

type fakeExtractor struct {
	pages []string
	err   error
}

func (f *fakeExtractor) Extract(content []byte) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

type failingEmbedder struct {
	*embedding.MockEmbedder
	failAfter int
	calls     int
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.calls > e.failAfter {
		return nil, errors.New("embedding backend unavailable")
	}
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

type failingIndex struct {
	vector.Index
	failOnOrdinal int
}

func (f *failingIndex) Upsert(ctx context.Context, documentID string, ordinal int, vec []float32, text, source string) error {
	if ordinal >= f.failOnOrdinal {
		return errors.New("index write refused")
	}
	return f.Index.Upsert(ctx, documentID, ordinal, vec, text, source)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Chunking.ChunkSize = 50
	cfg.Chunking.ChunkOverlap = 10
	return cfg
}

func newTestLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	l, err := ledger.NewSQLiteLedger(filepath.Join(t.TempDir(), "uploads.db"))
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestPipelineIngestCompletes(t *testing.T) {
	l := newTestLedger(t)
	idx, _ := vector.NewMemory(384)
	ex := &fakeExtractor{pages: []string{
		strings.Repeat("page one text. ", 10),
		strings.Repeat("page two text. ", 10),
	}}
	p := NewPipeline(l, ex, embedding.NewMockEmbedder(384), idx, testConfig())

	doc, err := p.Ingest(context.Background(), "doc1", "report.pdf", "/tmp/report.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", doc.Status, doc.Error)
	}
	if doc.Pages != 2 {
		t.Errorf("pages = %d, want 2", doc.Pages)
	}
	if doc.Chunks == 0 || idx.Size() != doc.Chunks {
		t.Errorf("indexed %d chunks, document records %d", idx.Size(), doc.Chunks)
	}

	stored, err := l.Get(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != models.StatusCompleted {
		t.Errorf("ledger status = %s", stored.Status)
	}
	if stored.Chunks != doc.Chunks || stored.Pages != 2 {
		t.Errorf("ledger counts: pages %d chunks %d", stored.Pages, stored.Chunks)
	}
}

func TestPipelineEndToEndChunkCount(t *testing.T) {
	l := newTestLedger(t)
	idx, _ := vector.NewMemory(384)
	ex := &fakeExtractor{pages: []string{strings.Repeat("a", 1000)}}
	cfg := config.Default()
	p := NewPipeline(l, ex, embedding.NewMockEmbedder(384), idx, cfg)

	doc, err := p.Ingest(context.Background(), "doc1", "long.pdf", "", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.Status != models.StatusCompleted {
		t.Fatalf("status = %s (error: %s)", doc.Status, doc.Error)
	}
	// 1000 chars at 400/200 window: starts 0, 200, 400, 600.
	if doc.Chunks != 4 {
		t.Errorf("chunks = %d, want 4", doc.Chunks)
	}
	if idx.Size() != 4 {
		t.Errorf("index size = %d, want 4", idx.Size())
	}
}

func TestPipelineExtractionFailure(t *testing.T) {
	l := newTestLedger(t)
	idx, _ := vector.NewMemory(384)
	ex := &fakeExtractor{err: faults.New(faults.Extraction, "no extractable text")}
	p := NewPipeline(l, ex, embedding.NewMockEmbedder(384), idx, testConfig())

	doc, err := p.Ingest(context.Background(), "doc1", "bad.pdf", "", []byte("junk"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", doc.Status)
	}
	if !strings.HasPrefix(doc.Error, "extract:") {
		t.Errorf("error = %q, want extract phase prefix", doc.Error)
	}
	if idx.Size() != 0 {
		t.Errorf("index has %d chunks after failure", idx.Size())
	}
	stored, _ := l.Get(context.Background(), "doc1")
	if stored.Status != models.StatusFailed {
		t.Errorf("ledger status = %s", stored.Status)
	}
}

func TestPipelineEmbeddingFailureRollsBack(t *testing.T) {
	l := newTestLedger(t)
	idx, _ := vector.NewMemory(384)
	em := &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(384), failAfter: 0}
	ex := &fakeExtractor{pages: []string{strings.Repeat("text ", 100)}}
	p := NewPipeline(l, ex, em, idx, testConfig())

	doc, err := p.Ingest(context.Background(), "doc1", "a.pdf", "", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", doc.Status)
	}
	if !strings.HasPrefix(doc.Error, "embed:") {
		t.Errorf("error = %q, want embed phase prefix", doc.Error)
	}
	if idx.Size() != 0 {
		t.Errorf("index has %d chunks, want 0 (all-or-nothing)", idx.Size())
	}
}

func TestPipelineIndexFailureRollsBack(t *testing.T) {
	l := newTestLedger(t)
	mem, _ := vector.NewMemory(384)
	idx := &failingIndex{Index: mem, failOnOrdinal: 2}
	ex := &fakeExtractor{pages: []string{strings.Repeat("text ", 100)}}
	p := NewPipeline(l, ex, embedding.NewMockEmbedder(384), idx, testConfig())

	doc, err := p.Ingest(context.Background(), "doc1", "a.pdf", "", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", doc.Status)
	}
	if !strings.HasPrefix(doc.Error, "index:") {
		t.Errorf("error = %q", doc.Error)
	}
	if mem.Size() != 0 {
		t.Errorf("index has %d chunks after rollback", mem.Size())
	}
}

func TestPipelineRejectsConcurrentSameID(t *testing.T) {
	l := newTestLedger(t)
	idx, _ := vector.NewMemory(384)

	started := make(chan struct{})
	release := make(chan struct{})
	ex := &blockingExtractor{started: started, release: release}
	p := NewPipeline(l, ex, embedding.NewMockEmbedder(384), idx, testConfig())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Ingest(context.Background(), "doc1", "a.pdf", "", []byte("%PDF"))
	}()
	<-started

	_, err := p.Ingest(context.Background(), "doc1", "a.pdf", "", []byte("%PDF"))
	if !faults.Is(err, faults.InvalidArgument) {
		t.Errorf("concurrent ingest error = %v, want invalid argument", err)
	}
	close(release)
	wg.Wait()
}

type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingExtractor) Extract(content []byte) ([]string, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return []string{"some page text"}, nil
}

func TestPipelineGeneratesID(t *testing.T) {
	l := newTestLedger(t)
	idx, _ := vector.NewMemory(384)
	ex := &fakeExtractor{pages: []string{"hello world"}}
	p := NewPipeline(l, ex, embedding.NewMockEmbedder(384), idx, testConfig())

	doc, err := p.Ingest(context.Background(), "", "a.pdf", "", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected a generated document ID")
	}
}

func TestPipelineReingestReplacesChunks(t *testing.T) {
	l := newTestLedger(t)
	idx, _ := vector.NewMemory(384)
	ex := &fakeExtractor{pages: []string{strings.Repeat("first version ", 30)}}
	p := NewPipeline(l, ex, embedding.NewMockEmbedder(384), idx, testConfig())

	doc, err := p.Ingest(context.Background(), "doc1", "a.pdf", "", []byte("%PDF"))
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	firstChunks := doc.Chunks

	// Second ingest under a new ID replaces nothing; same ID with shorter
	// content must not leave stale chunks from the first run.
	ex.pages = []string{"short"}
	doc2, err := p.Ingest(context.Background(), "doc2", "a.pdf", "", []byte("%PDF"))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if idx.Size() != firstChunks+doc2.Chunks {
		t.Errorf("index size = %d, want %d", idx.Size(), firstChunks+doc2.Chunks)
	}

	if err := p.Remove(context.Background(), "doc1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if idx.Size() != doc2.Chunks {
		t.Errorf("index size after remove = %d, want %d", idx.Size(), doc2.Chunks)
	}
}
