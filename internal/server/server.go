// Package server wires the store, services, router and HTTP handlers together
// and runs the webhook.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → OpenStore: sqlite.DB | postgres.DB | memory.Store  (repository.Store)
//	  → ListService, GroupService                         (business rules)
//	  → session.Manager, action.Codec                     (per-user state, button tokens)
//	  → router.Router                                     (one event → one reply)
//	  → dispatch.Dispatcher                               (batches, per-user order)
//	  → handler.EventHandler                              (JSON over HTTP)
//
// This is the composition root: nothing below it constructs its own
// dependencies.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/sharedlist/internal/action"
	"github.com/sakif/sharedlist/internal/auth"
	"github.com/sakif/sharedlist/internal/config"
	"github.com/sakif/sharedlist/internal/dispatch"
	"github.com/sakif/sharedlist/internal/handler"
	"github.com/sakif/sharedlist/internal/metrics"
	"github.com/sakif/sharedlist/internal/middleware"
	"github.com/sakif/sharedlist/internal/repository"
	"github.com/sakif/sharedlist/internal/repository/memory"
	"github.com/sakif/sharedlist/internal/repository/postgres"
	sqliteRepo "github.com/sakif/sharedlist/internal/repository/sqlite"
	"github.com/sakif/sharedlist/internal/router"
	"github.com/sakif/sharedlist/internal/service"
	"github.com/sakif/sharedlist/internal/session"
)

// Server owns the store and closes it on shutdown.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	store    repository.Store
	registry *prometheus.Registry
}

// OpenStore opens the backend named by cfg.StoreDriver and runs its
// migrations. The caller owns the returned store.
func OpenStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	// Each case returns its own nil on error; a nil *sqliteRepo.DB inside a
	// repository.Store would not compare equal to nil.
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// New opens the configured store and builds a Server around it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s, err := NewWithStore(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore builds a Server on an already open store. The Server takes
// ownership of it.
func NewWithStore(cfg config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		registry: reg,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// ROUTE STRUCTURE:
// GET  /healthz           → liveness check
// GET  /metrics           → Prometheus scrape endpoint
// POST /api/events        → one chat event, one reply
// POST /api/events/batch  → up to 100 events, replies in order
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so the logger can print it; Recoverer last so a panic in
// anything after it still becomes a 500. The router recovers its own panics
// per event, so Recoverer only ever sees a bug in the HTTP layer itself.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	m := metrics.New(s.registry)

	lists := service.NewListService(s.store, s.logger)
	groups := service.NewGroupService(s.store, s.logger,
		service.WithMaxCodeAttempts(s.config.CodeAttempts),
		service.WithMetrics(m),
	)
	rt := router.New(
		lists,
		groups,
		session.NewManager(),
		action.NewCodec(s.config.TokenMaxBytes),
		s.logger,
		router.WithMetrics(m),
		router.WithConfirmRemovals(s.config.ConfirmRemovals),
	)
	events, err := handler.NewEventHandler(rt, dispatch.New(rt, s.config.DispatchWorkers, s.logger), s.logger)
	if err != nil {
		return fmt.Errorf("creating event handler: %w", err)
	}

	s.router.Get("/healthz", events.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Without a secret anyone who can reach the port can post events as any
	// user. That is fine on a private network next to the gateway, nowhere else.
	var requireGateway func(http.Handler) http.Handler
	if s.config.GatewaySecret != "" {
		tokens, err := auth.NewTokenService(s.config.GatewaySecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		requireGateway = auth.RequireGateway(tokens)
	} else {
		s.logger.Warn("GATEWAY_SECRET not set, /api accepts unauthenticated events")
	}

	s.router.Route("/api", func(r chi.Router) {
		if requireGateway != nil {
			r.Use(requireGateway)
		}
		r.Post("/events", events.HandleEvent)
		r.Post("/events/batch", events.HandleBatch)
	})

	return nil
}

// Close releases the store. Start calls it on the way out.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT or SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections.
//  2. Let in-flight events finish (30s timeout).
//  3. Close the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.StoreDriver),
			slog.Bool("gateway_auth", s.config.GatewaySecret != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
