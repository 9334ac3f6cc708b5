// Package api serves the local gateway: it runs stream sessions against the
// upstream backend and relays normalized events to callers over SSE.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quillworks/quill/internal/client"
	"github.com/quillworks/quill/internal/config"
	"github.com/quillworks/quill/internal/store"
	"github.com/quillworks/quill/internal/stream"
)

// Config holds gateway server configuration.
type Config struct {
	Listen string
	Token  string
	Model  string
	Stream config.StreamConfig
}

// Server represents the gateway HTTP server.
type Server struct {
	config        Config
	upstream      *client.Client
	conversations *store.ConversationStore
	messages      *store.MessageStore
	logger        *slog.Logger
	server        *http.Server
	startedAt     time.Time

	surfaceMu sync.Mutex
	surfaces  map[string]*stream.Surface
}

// surface returns the single-flight guard for one UI surface, so a new
// session on the same conversation cancels and awaits the previous one.
func (s *Server) surface(key string) *stream.Surface {
	s.surfaceMu.Lock()
	defer s.surfaceMu.Unlock()
	if s.surfaces == nil {
		s.surfaces = make(map[string]*stream.Surface)
	}
	su, ok := s.surfaces[key]
	if !ok {
		su = &stream.Surface{}
		s.surfaces[key] = su
	}
	return su
}

// New creates a new gateway server instance.
func New(cfg Config, upstream *client.Client, conversations *store.ConversationStore, messages *store.MessageStore, logger *slog.Logger) *Server {
	return &Server{
		config:        cfg,
		upstream:      upstream,
		conversations: conversations,
		messages:      messages,
		logger:        logger,
		startedAt:     time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // relay endpoints are long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("gateway starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated
	r.Get("/healthz", s.handleHealthz)

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Post("/v1/chat", s.handleChat)
		r.Post("/v1/validate", s.handleValidate)
		r.Post("/v1/agent", s.handleAgent)
		r.Get("/v1/conversations", s.handleListConversations)
		r.Get("/v1/conversations/{conversation_id}", s.handleGetConversation)
		r.Delete("/v1/conversations/{conversation_id}", s.handleDeleteConversation)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// bearerAuth is middleware that validates Bearer token authentication.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			s.writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
		if token == "" || s.config.Token == "" || len(token) != len(s.config.Token) ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
