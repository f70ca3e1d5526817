package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/unigpt/unigpt/internal/answer"
	"github.com/unigpt/unigpt/internal/config"
	"github.com/unigpt/unigpt/internal/embedding"
	"github.com/unigpt/unigpt/internal/files"
	"github.com/unigpt/unigpt/internal/ingest"
	"github.com/unigpt/unigpt/internal/ledger"
	"github.com/unigpt/unigpt/internal/retrieve"
	"github.com/unigpt/unigpt/internal/vector"
)

type stubExtractor struct{}

func (stubExtractor) Extract(content []byte) ([]string, error) {
	return []string{"This is the extracted text of page one. It talks about Go services."}, nil
}

type stubLLM struct {
	reply string
}

func (s *stubLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	return s.reply, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Retrieval.MinScore = -1
	cfg.Storage.DatabasePath = filepath.Join(dir, "uploads.db")
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "index.bin")
	cfg.Storage.UploadDir = filepath.Join(dir, "uploads")

	l, err := ledger.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	store, err := files.NewStore(cfg.Storage.UploadDir)
	if err != nil {
		t.Fatal(err)
	}
	em := embedding.NewMockEmbedder(64)
	idx, err := vector.NewMemory(64)
	if err != nil {
		t.Fatal(err)
	}

	pipeline := ingest.NewPipeline(l, stubExtractor{}, em, idx, cfg)
	retriever := retrieve.NewRetriever(em, idx, cfg)
	generator := answer.NewGenerator(retriever, &stubLLM{reply: "a grounded answer"}, cfg.Retrieval.TopK)

	return NewServer(pipeline, generator, l, idx, store, cfg, zap.NewNop())
}

func multipartPDF(t *testing.T, field, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("%PDF-1.4 fake content"))
	w.Close()
	return &buf, w.FormDataContentType()
}

func doRequest(t *testing.T, s *Server, method, path, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleUpload(t *testing.T) {
	s := newTestServer(t)
	buf, ct := multipartPDF(t, "file", "notes.pdf")
	rec := doRequest(t, s, http.MethodPost, "/api/v1/upload", ct, buf)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" {
		t.Errorf("body = %v", body)
	}
	if body["upload_id"] == "" || body["upload_id"] == nil {
		t.Error("missing upload_id")
	}
	if chunks, ok := body["num_chunks"].(float64); !ok || chunks < 1 {
		t.Errorf("num_chunks = %v", body["num_chunks"])
	}

	// The document should be visible in the ledger afterwards.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/uploads", "", nil)
	uploads, ok := decodeBody(t, rec)["uploads"].([]interface{})
	if !ok || len(uploads) != 1 {
		t.Errorf("uploads = %v", uploads)
	}
}

func TestHandleUploadRejectsNonPDF(t *testing.T) {
	s := newTestServer(t)
	buf, ct := multipartPDF(t, "file", "notes.txt")
	rec := doRequest(t, s, http.MethodPost, "/api/v1/upload", ct, buf)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "PDF") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleUploadMissingFile(t *testing.T) {
	s := newTestServer(t)
	buf, ct := multipartPDF(t, "wrong_field", "notes.pdf")
	rec := doRequest(t, s, http.MethodPost, "/api/v1/upload", ct, buf)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleChat(t *testing.T) {
	s := newTestServer(t)

	buf, ct := multipartPDF(t, "file", "notes.pdf")
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/upload", ct, buf); rec.Code != http.StatusOK {
		t.Fatalf("upload failed: %s", rec.Body.String())
	}

	payload := bytes.NewBufferString(`{"message": "what do the notes say?", "top_k": 3}`)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/chat", "application/json", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["response"] != "a grounded answer" {
		t.Errorf("response = %v", body["response"])
	}
	if sources, ok := body["sources"].([]interface{}); !ok || len(sources) == 0 {
		t.Errorf("sources = %v", body["sources"])
	}
}

func TestHandleChatEmptyIndexFallsBack(t *testing.T) {
	s := newTestServer(t)
	payload := bytes.NewBufferString(`{"message": "anything?"}`)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/chat", "application/json", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["response"] != answer.Fallback {
		t.Errorf("response = %v, want fallback", body["response"])
	}
}

func TestHandleChatValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/chat", "application/json", bytes.NewBufferString(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message: status = %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodPost, "/api/v1/chat", "application/json", bytes.NewBufferString(`not json`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", rec.Code)
	}
}

func TestHandleUploadStats(t *testing.T) {
	s := newTestServer(t)
	buf, ct := multipartPDF(t, "file", "notes.pdf")
	doRequest(t, s, http.MethodPost, "/api/v1/upload", ct, buf)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/uploads/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	stats, ok := body["statistics"].(map[string]interface{})
	if !ok {
		t.Fatalf("statistics = %v", body["statistics"])
	}
	if stats["total_documents"].(float64) != 1 {
		t.Errorf("total_documents = %v", stats["total_documents"])
	}
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, ok := body["config"].(map[string]interface{}); !ok {
		t.Errorf("missing config block: %v", body)
	}
	if body["vector_index_size"].(float64) != 0 {
		t.Errorf("vector_index_size = %v", body["vector_index_size"])
	}
}

func TestHandleUploadsLimitValidation(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/uploads?limit=abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}
