package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/campaigner/internal/config"
	"github.com/foxzi/campaigner/internal/logging"
	"github.com/foxzi/campaigner/internal/metrics"
	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/transport"
)

// Campaigns is the read side of campaign storage
type Campaigns interface {
	List(ctx context.Context) ([]*models.Campaign, error)
	Get(ctx context.Context, name string) (*models.Campaign, error)
	History(ctx context.Context, name string) ([]*models.HistoryRecord, error)
}

// Suppressions reports the mirror size
type Suppressions interface {
	CountSuppressions(ctx context.Context) (int, error)
	IsSuppressed(ctx context.Context, email string) (bool, error)
}

// Sandbox lists captured messages when the sandbox transport is active
type Sandbox interface {
	List(ctx context.Context, filter transport.SandboxFilter) ([]*transport.Captured, error)
}

// Server is the read-only HTTP API
type Server struct {
	router       *chi.Mux
	httpServer   *http.Server
	campaigns    Campaigns
	suppressions Suppressions
	sandbox      Sandbox
	config       config.APIConfig
	logger       *slog.Logger
	startTime    time.Time
}

// NewServer creates the API server. sandbox may be nil.
func NewServer(campaigns Campaigns, suppressions Suppressions, sandbox Sandbox, cfg config.APIConfig, logger *slog.Logger) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		campaigns:    campaigns,
		suppressions: suppressions,
		sandbox:      sandbox,
		config:       cfg,
		logger:       logging.Discard(logger).With("component", "api"),
		startTime:    time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/campaigns", s.handleListCampaigns)
		r.Get("/campaigns/{name}", s.handleGetCampaign)
		r.Get("/campaigns/{name}/history", s.handleCampaignHistory)
		r.Get("/suppressions", s.handleSuppressionCount)
		r.Get("/suppressions/{email}", s.handleSuppressionCheck)

		if s.sandbox != nil {
			r.Get("/sandbox/messages", s.handleSandboxMessages)
		}
	})
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
