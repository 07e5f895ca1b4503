// Package server provides the HTTP API for ragserve.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hoanvu/ragserve/internal/config"
	"github.com/hoanvu/ragserve/internal/ingest"
	"github.com/hoanvu/ragserve/internal/llm"
	"github.com/hoanvu/ragserve/internal/registry"
	"github.com/hoanvu/ragserve/internal/session"
	"github.com/hoanvu/ragserve/internal/vectorstore"
)

// maxUploadBytes caps document uploads at 50 MB.
const maxUploadBytes = 50 << 20

// Server is the HTTP server for the ragserve API.
type Server struct {
	store     *vectorstore.Store
	sessions  *session.Store
	ingestor  *ingest.Ingestor
	registry  *registry.Registry
	generator llm.Generator
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. registry may be nil
// when upload tracking is disabled.
func NewServer(
	store *vectorstore.Store,
	sessions *session.Store,
	ingestor *ingest.Ingestor,
	reg *registry.Registry,
	generator llm.Generator,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:     store,
		sessions:  sessions,
		ingestor:  ingestor,
		registry:  reg,
		generator: generator,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/chat", s.handleChat)
	r.Post("/api/v1/chat/stream", s.handleChatStream)
	r.Post("/api/v1/search", s.handleSearch)

	r.Post("/api/v1/documents/upload", s.handleUploadDocument)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)

	r.Post("/api/v1/sessions", s.handleCreateSession)
	r.Get("/api/v1/sessions", s.handleListSessions)
	r.Get("/api/v1/sessions/{id}", s.handleGetSession)
	r.Delete("/api/v1/sessions/{id}", s.handleDeleteSession)
	r.Get("/api/v1/sessions/{id}/messages", s.handleSessionMessages)
	r.Delete("/api/v1/sessions", s.handleClearSessions)

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
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
