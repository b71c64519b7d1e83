package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"lockcycled/internal/core"
	"lockcycled/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the HTTP control-API state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	store      *store.Store
	engine     *core.Engine
	logger     *slog.Logger
	authToken  string
}

// NewServer constructs the HTTP API server.
func NewServer(addr string, authToken string, store *store.Store, engine *core.Engine, logger *slog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		store:     store,
		engine:    engine,
		logger:    logger,
		authToken: authToken,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Get("/status", s.handleStatus)
		r.Post("/session/start", s.handleStart)
		r.Post("/session/stop", s.handleStop)

		r.Put("/secret", s.handleSetSecret)
		r.Delete("/secret", s.handleClearSecret)

		r.Post("/interval/preview", s.handleIntervalPreview)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Get("/cycles", s.handleListCycles)
			})
		})
	})
}
