// Package api provides a mock of the prompt analytics HTTP API.
//
// It serves the same four endpoints as the real service with canned score
// and analysis data, so the client and CLI can be exercised offline.
// Prompts are kept in memory for the lifetime of the server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seenimoa/pianalytics/pkg/models"
)

// DefaultTickers are the recommendations returned for every broadcast prompt.
var DefaultTickers = []string{"AAPL", "GOOGL", "AMZN"}

// promptKind distinguishes plain submissions from broadcasts.
type promptKind int

const (
	kindPlain promptKind = iota
	kindBroadcast
)

type promptEntry struct {
	text string
	kind promptKind
}

// Options configures a Server.
type Options struct {
	// Prefix is the path the API is mounted under. Empty means DefaultPrefix
	// and "/" mounts the routes at the root.
	Prefix string

	// NewID returns the identifier for each accepted prompt.
	// Defaults to the first 12 hex digits of a random UUID.
	NewID func() string

	Logger *zap.Logger
}

// Server is the mock analytics API.
type Server struct {
	router chi.Router
	prefix string
	newID  func() string
	logger *zap.Logger

	mu      sync.RWMutex
	prompts map[models.PromptID]promptEntry
}

// DefaultPrefix is the mount point used when Options.Prefix is empty.
const DefaultPrefix = "/api"

// NewServer creates a mock server with all routes and middleware.
func NewServer(opts Options) *Server {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Server{
		prefix:  "/" + strings.Trim(prefix, "/"),
		newID:   opts.NewID,
		logger:  opts.Logger,
		prompts: make(map[models.PromptID]promptEntry),
	}
	if s.prefix == "/" {
		s.prefix = ""
	}
	if s.newID == nil {
		s.newID = func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	s.logger.Info("mock analytics API listening", zap.String("addr", addr), zap.String("prefix", s.prefix))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down mock analytics API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	routes := func(r chi.Router) {
		r.Post("/prompts", s.handleSubmit(kindPlain))
		r.Post("/prompts/broadcast", s.handleSubmit(kindBroadcast))
		r.Get("/prompts/{prompt_id}/scores", s.handleScores)
		r.Get("/results/{prompt_id}", s.handleResults)
	}
	if s.prefix == "" {
		r.Group(routes)
	} else {
		r.Route(s.prefix, routes)
	}

	return r
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) store(text string, kind promptKind) models.PromptID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := models.PromptID(s.newID())
	s.prompts[id] = promptEntry{text: text, kind: kind}
	return id
}

func (s *Server) lookup(id models.PromptID) (promptEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.prompts[id]
	return e, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body of every non-2xx mock response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
