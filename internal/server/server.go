// Package server exposes the corpus manager over a JSON HTTP API and owns
// the upload directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"docsearch/internal/domain"
	"docsearch/internal/service"
)

// Factory builds an empty corpus manager.
type Factory func() *service.Processor

// Options configure the HTTP server.
type Options struct {
	Addr           string
	UploadDir      string
	MaxDocuments   int
	MaxUploadBytes int64
	// QueryRate limits /api/query requests per second across all clients.
	QueryRate  float64
	QueryBurst int
}

// Server manages the HTTP server and routes. The current Processor sits
// behind an atomic pointer so a reinitialisation swaps it whole; ingestion
// is serialised by ingestMu.
type Server struct {
	opts         Options
	newProcessor Factory
	logger       arbor.ILogger
	limiter      *rate.Limiter

	processor atomic.Pointer[service.Processor]
	ingestMu  sync.Mutex
	// seen holds base names ingested into the current processor.
	seen map[string]struct{}

	router *http.ServeMux
	server *http.Server
}

// New creates a new HTTP server with an empty processor.
func New(opts Options, newProcessor Factory, logger arbor.ILogger) *Server {
	limit := rate.Inf
	if opts.QueryRate > 0 {
		limit = rate.Limit(opts.QueryRate)
	}
	if opts.QueryBurst <= 0 {
		opts.QueryBurst = 1
	}
	s := &Server{
		opts:         opts,
		newProcessor: newProcessor,
		logger:       logger,
		limiter:      rate.NewLimiter(limit, opts.QueryBurst),
		seen:         make(map[string]struct{}),
	}
	s.processor.Store(newProcessor())

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Processor returns the current corpus manager.
func (s *Server) Processor() *service.Processor { return s.processor.Load() }

// Initialize ingests the upload directory into a fresh processor and swaps it
// in. Queries keep using the previous processor until the swap.
func (s *Server) Initialize(ctx context.Context) (map[domain.Kind]int, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	p := s.newProcessor()
	counts, err := p.IngestDirectory(ctx, s.opts.UploadDir)
	if err != nil {
		return counts, err
	}

	seen := make(map[string]struct{})
	if entries, err := os.ReadDir(s.opts.UploadDir); err == nil {
		for _, e := range entries {
			seen[e.Name()] = struct{}{}
		}
	}
	s.seen = seen
	old := s.processor.Swap(p)

	s.logger.Info().
		Str("generation", p.ID()).
		Str("previous", old.ID()).
		Int("documents", p.TotalCount()).
		Msg("Processor initialized")
	return counts, nil
}

// IngestFile appends one file from the upload directory to the current
// processor. Files already ingested into it are skipped.
func (s *Server) IngestFile(ctx context.Context, path string) (bool, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	return s.ingestLocked(ctx, path)
}

func (s *Server) ingestLocked(ctx context.Context, path string) (bool, error) {
	name := filepath.Base(path)
	if _, ok := s.seen[name]; ok {
		return false, nil
	}
	ok, err := s.processor.Load().IngestFile(ctx, path)
	if ok {
		s.seen[name] = struct{}{}
	}
	return ok, err
}

// Start initializes from the upload directory and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	if _, err := s.Initialize(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Cold start initialization failed")
	}

	s.logger.Info().
		Str("address", s.opts.Addr).
		Str("upload_dir", s.opts.UploadDir).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
