package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unigpt/unigpt/internal/faults"
	"github.com/unigpt/unigpt/internal/files"
	"github.com/unigpt/unigpt/internal/models"
)

// maxUploadBytes bounds multipart uploads (50 MB).
const maxUploadBytes = 50 << 20

type chatRequest struct {
	Message string `json:"message"`
	TopK    int    `json:"top_k"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, http.StatusBadRequest, "no message provided")
		return
	}
	s.logger.Debug("chat request", zap.Int("top_k", req.TopK))
	result, err := s.generator.Answer(r.Context(), req.Message, req.TopK)
	if err != nil {
		s.logger.Error("chat failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"response": result.Answer,
		"sources":  result.Sources,
		"status":   "success",
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.respondError(w, http.StatusBadRequest, "no file selected")
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		s.respondError(w, http.StatusBadRequest, "only PDF files are allowed")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	filename := files.Sanitize(header.Filename)
	storedPath, err := s.files.Save(filename, content)
	if err != nil {
		s.logger.Error("saving upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	doc, err := s.pipeline.Ingest(r.Context(), uuid.New().String(), filename, storedPath, content)
	if err != nil {
		s.logger.Error("upload rejected", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if doc.Status == models.StatusFailed {
		s.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status":    "error",
			"upload_id": doc.ID,
			"error":     doc.Error,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "success",
		"message":            "PDF uploaded and processed successfully",
		"upload_id":          doc.ID,
		"filename":           doc.Filename,
		"num_pages":          doc.Pages,
		"num_chunks":         doc.Chunks,
		"processing_time_ms": doc.ProcessingMS,
	})
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	uploads, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing uploads failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"uploads": uploads,
	})
}

func (s *Server) handleUploadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Stats(r.Context())
	if err != nil {
		s.logger.Error("upload stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"statistics": stats,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Stats(r.Context())
	if err != nil {
		s.logger.Error("status: ledger stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":         stats.TotalDocuments,
		"chunks":            stats.TotalChunks,
		"vector_index_size": s.index.Size(),
	}
	resp["config"] = map[string]interface{}{
		"embedding_model":      s.config.Embedding.Model,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"chunk_size":           s.config.Chunking.ChunkSize,
		"chunk_overlap":        s.config.Chunking.ChunkOverlap,
		"top_k":                s.config.Retrieval.TopK,
		"generation_model":     s.config.Generation.Model,
		"database_path":        s.config.Storage.DatabasePath,
		"vector_index_path":    s.config.Storage.VectorIndexPath,
	}
	diskBytes, err := files.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.VectorIndexPath,
		s.config.Storage.UploadDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"vector_index_size": s.index.Size(),
	})
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	if faults.Is(err, faults.InvalidArgument) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
