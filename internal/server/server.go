package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/server/handler"
	"github.com/papertrade/dogebot/internal/server/middleware"
	"github.com/papertrade/dogebot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string        // if empty, authentication is disabled
	RateLimit   int           // requests per RateWindow per client, 0 disables
	RateWindow  time.Duration // sliding window for rate limiting
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Positions *handler.PositionHandler
	History   *handler.HistoryHandler
	Reports   *handler.ReportHandler
	Bots      *handler.BotHandler
	Signals   *handler.SignalHandler
	Archives  *handler.ArchiveHandler // nil when blob storage is not configured
}

// Server is the headless HTTP + WebSocket API for the paper-trading tracker.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, optional rate limiting) and
// attaches the WebSocket hub. Pass limiter nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Open positions.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/positions/{strategy}", handlers.Positions.GetPosition)

	// Closed-trade history, paginated.
	mux.HandleFunc("GET /api/history", handlers.History.ListHistory)

	// Reporting endpoints.
	mux.HandleFunc("GET /api/stats", handlers.Reports.GetStats)
	mux.HandleFunc("GET /api/account", handlers.Reports.GetAccount)
	mux.HandleFunc("GET /api/overview", handlers.Reports.GetOverview)

	// Bot lifecycle endpoints.
	mux.HandleFunc("GET /api/bots", handlers.Bots.ListBots)
	mux.HandleFunc("POST /api/bots/{id}/start", handlers.Bots.StartBot)
	mux.HandleFunc("POST /api/bots/{id}/stop", handlers.Bots.StopBot)

	// Manual signal injection.
	mux.HandleFunc("POST /api/signal", handlers.Signals.InjectSignal)

	// Archived history, only when blob storage is wired.
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
		mux.HandleFunc("GET /api/archives/{key...}", handlers.Archives.GetArchive)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply rate limiting when a limiter is available.
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
