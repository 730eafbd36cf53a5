package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/streakvault/streakvault/internal/crypto"
	"github.com/streakvault/streakvault/internal/domain"
	"github.com/streakvault/streakvault/internal/server/handler"
	"github.com/streakvault/streakvault/internal/server/middleware"
	"github.com/streakvault/streakvault/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// APIKeyHash is the PBKDF2 hash of the client API key. If empty,
	// authentication is disabled.
	APIKeyHash string

	// AdminAuth signs operator requests. If nil, admin routes reject all
	// requests.
	AdminAuth *crypto.HMACAuth

	// RateLimiter throttles per-client request rates. Optional.
	RateLimiter domain.RateLimiter
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Positions *handler.PositionHandler
	Markets   *handler.MarketHandler
	Bets      *handler.BetHandler
	Treasury  *handler.TreasuryHandler
	Admin     *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Savings position endpoints.
	mux.HandleFunc("POST /api/positions", handlers.Positions.CreatePosition)
	mux.HandleFunc("GET /api/positions/{user}", handlers.Positions.GetPosition)
	mux.HandleFunc("POST /api/positions/{user}/deposit", handlers.Positions.Deposit)
	mux.HandleFunc("POST /api/positions/{user}/start", handlers.Positions.StartCourse)
	mux.HandleFunc("POST /api/positions/{user}/tasks", handlers.Positions.CompleteTask)
	mux.HandleFunc("POST /api/positions/{user}/withdraw", handlers.Positions.Withdraw)
	mux.HandleFunc("POST /api/positions/{user}/early-withdraw", handlers.Positions.EarlyWithdraw)

	// Market endpoints.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.TriggerResolution)
	mux.HandleFunc("POST /api/markets/{id}/close", handlers.Markets.CloseMarket)

	// Bet endpoints.
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/markets/{id}/bets", handlers.Bets.ListBets)
	mux.HandleFunc("GET /api/markets/{id}/bets/{bettor}", handlers.Bets.GetBet)
	mux.HandleFunc("POST /api/markets/{id}/bets/{bettor}/claim", handlers.Bets.ClaimWinnings)

	// Treasury endpoint.
	mux.HandleFunc("GET /api/treasury", handlers.Treasury.GetTreasury)

	// Operator endpoints behind HMAC signatures.
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("POST /api/admin/credits", handlers.Admin.CreditBalance)
	adminMux.HandleFunc("GET /api/admin/balances/{user}", handlers.Admin.GetBalance)
	adminMux.HandleFunc("GET /api/admin/audit", handlers.Admin.ListAudit)
	adminMux.HandleFunc("GET /api/admin/archives", handlers.Admin.ListArchives)
	adminMux.HandleFunc("GET /api/admin/archives/{path...}", handlers.Admin.GetArchive)
	mux.Handle("/api/admin/", middleware.AdminHMAC(cfg.AdminAuth)(adminMux))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKeyHash is empty).
	h = middleware.Auth(cfg.APIKeyHash)(h)

	// Apply per-client rate limiting when a limiter is configured.
	if cfg.RateLimiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, cfg.RateWindow)(h)
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
