// Package server provides the HTTP API for UniGPT.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/unigpt/unigpt/internal/answer"
	"github.com/unigpt/unigpt/internal/config"
	"github.com/unigpt/unigpt/internal/files"
	"github.com/unigpt/unigpt/internal/ingest"
	"github.com/unigpt/unigpt/internal/ledger"
	"github.com/unigpt/unigpt/internal/vector"
)

// Server is the HTTP server for the UniGPT API.
type Server struct {
	pipeline  *ingest.Pipeline
	generator *answer.Generator
	ledger    ledger.Ledger
	index     vector.Index
	files     *files.Store
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	pipeline *ingest.Pipeline,
	generator *answer.Generator,
	l ledger.Ledger,
	idx vector.Index,
	store *files.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:  pipeline,
		generator: generator,
		ledger:    l,
		index:     idx,
		files:     store,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/api/v1/upload", s.handleUpload)
	r.Post("/api/v1/chat", s.handleChat)
	r.Get("/api/v1/uploads", s.handleUploads)
	r.Get("/api/v1/uploads/stats", s.handleUploadStats)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
