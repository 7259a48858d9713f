// Package userapi is a small namespaced JSON document service, the target
// the load scenarios are written against. Documents live under
// /ns/{namespace}/{id}. A namespace with a registered JSON Schema only
// accepts matching documents; "users" starts with the user schema.
package userapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server wires the store, router and metrics together.
type Server struct {
	cfg     Config
	store   Store
	logger  *zap.Logger
	schemas *schemaRegistry
	metrics *serverMetrics
	router  *chi.Mux
}

// Option customizes a Server.
type Option func(*Server)

// WithStore replaces the default in-memory store.
func WithStore(store Store) Option {
	return func(s *Server) { s.store = store }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds a Server with an in-memory store and a silent logger unless
// opts say otherwise. The router is ready once New returns.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		store:   NewMemStore(),
		schemas: newSchemaRegistry(),
		logger:  zap.NewNop(),
		metrics: newServerMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(corsHandler())
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(s.metrics.instrument)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/ns", func(r chi.Router) {
		r.Get("/", s.handleNamespaces)
		r.Get("/{namespace}", s.handleList)
		r.Get("/{namespace}/{id}", s.handleGet)

		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(s.cfg.AuthToken))
			r.Delete("/{namespace}", s.handleDrop)
			r.Post("/{namespace}/{id}", s.handleUpsert)
			r.Put("/{namespace}/{id}", s.handleUpsert)
			r.Delete("/{namespace}/{id}", s.handleDelete)
		})
	})

	r.Get("/search/{namespace}", s.handleSearch)

	r.Route("/schema", func(r chi.Router) {
		r.Get("/", s.handleSchemas)
		r.Get("/{namespace}", s.handleGetSchema)

		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(s.cfg.AuthToken))
			r.Post("/{namespace}", s.handlePutSchema)
			r.Put("/{namespace}", s.handlePutSchema)
			r.Delete("/{namespace}", s.handleDeleteSchema)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the root handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully,
// giving in-flight requests up to the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("userapi listening",
			zap.String("addr", ln.Addr().String()),
			zap.Bool("auth", s.cfg.AuthToken != ""))
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gracefully", zap.Duration("timeout", s.cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
