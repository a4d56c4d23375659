// Package server exposes the ingestion pipeline and answering orchestrator
// over HTTP: POST /chat/upload, POST /chat/ask, a health endpoint, and
// static serving of stored uploads.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jcarver/docchat/internal/domain"
	"github.com/jcarver/docchat/internal/media"
)

// Ingestor runs the document indexing pipeline.
type Ingestor interface {
	Index(ctx context.Context, doc domain.Document, sourceBytes []byte, mimeHint string) (*domain.IndexReport, error)
}

// Answerer runs the question-answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string) (*domain.Answer, error)
}

// HealthChecker reports vector index connectivity.
// The storage layer implements this via its Health() method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	Port            int
	AllowAllOrigins bool // allow all CORS origins (dev mode)
}

// Server is the docchat HTTP server.
type Server struct {
	cfg        Config
	media      *media.Store
	ingestor   Ingestor
	answerer   Answerer
	health     HealthChecker
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all dependencies.
func New(cfg Config, store *media.Store, ingestor Ingestor, answerer Answerer, health HealthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		media:    store,
		ingestor: ingestor,
		answerer: answerer,
		health:   health,
		logger:   logger,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAllOrigins {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", s.handleHealth)

	r.Route("/chat", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/ask", s.handleAsk)
	})

	// Stored uploads stay retrievable for traceability.
	if s.media != nil {
		fileServer := http.StripPrefix("/media/", http.FileServer(http.Dir(s.media.Root())))
		r.Handle("/media/*", fileServer)
	}

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("docchat server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
