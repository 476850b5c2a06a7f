package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/factory"
	"go.uber.org/zap"
)

// Server exposes form generation over HTTP.
type Server struct {
	generator *formgen.Generator
	catalog   formgen.SchemaCatalog
	router    chi.Router
}

// NewServer creates a new Server instance
func NewServer(generator *formgen.Generator, catalog formgen.SchemaCatalog) *Server {
	return &Server{
		generator: generator,
		catalog:   catalog,
		router:    chi.NewRouter(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.router.Use(requestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(chimw.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/entities", s.handleListEntities)
		r.Get("/forms/{entity}", s.handleGenerateForm)
	})
}

func main() {
	cfg := loadConfig()

	logger, err := factory.NewLogger(cfg.Logging)
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := factory.NewGeneratorWithConfig(ctx, cfg)
	if err != nil {
		sugar.Fatalf("failed to create form generator: %v", err)
	}
	defer components.Close()

	server := NewServer(components.Generator, components.Catalog)
	server.RegisterRoutes()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("graceful shutdown failed", "err", err)
		}
	}()

	sugar.Infow("starting server", "port", cfg.Server.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalf("server error: %v", err)
	}
}
