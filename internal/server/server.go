// Package server exposes the auction service over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/server/handler"
	"github.com/alanyoungcy/batchauction/internal/server/middleware"
	"github.com/alanyoungcy/batchauction/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// RateLimit is the per-IP request budget per RateWindow; 0 disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Auctions *handler.AuctionHandler
	Orders   *handler.OrderHandler
	Accounts *handler.AccountHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, tokens middleware.TokenParser, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, tokens, limiter, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, tokens middleware.TokenParser, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/auth/challenge", handlers.Auth.Challenge)
	mux.HandleFunc("POST /api/auth/login", handlers.Auth.Login)

	mux.HandleFunc("POST /api/auctions", handlers.Auctions.Create)
	mux.HandleFunc("GET /api/auctions", handlers.Auctions.List)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.Get)
	mux.HandleFunc("GET /api/auctions/{id}/cursor", handlers.Auctions.Cursor)
	mux.HandleFunc("POST /api/auctions/{id}/precalculate", handlers.Auctions.Precalculate)
	mux.HandleFunc("POST /api/auctions/{id}/settle", handlers.Auctions.Settle)

	mux.HandleFunc("POST /api/auctions/{id}/orders", handlers.Orders.Place)
	mux.HandleFunc("POST /api/auctions/{id}/orders/cancel", handlers.Orders.Cancel)
	mux.HandleFunc("POST /api/auctions/{id}/claims", handlers.Orders.Claim)
	mux.HandleFunc("GET /api/auctions/{id}/orders", handlers.Orders.List)
	mux.HandleFunc("GET /api/auctions/{id}/orders/{orderId}", handlers.Orders.Get)

	mux.HandleFunc("GET /api/fees", handlers.Accounts.Fees)
	mux.HandleFunc("PUT /api/fees", handlers.Accounts.SetFees)
	mux.HandleFunc("GET /api/users/{address}", handlers.Accounts.UserByAddress)
	mux.HandleFunc("GET /api/users/id/{id}", handlers.Accounts.UserByID)
	mux.HandleFunc("GET /api/assets", handlers.Accounts.Assets)
	mux.HandleFunc("GET /api/assets/{asset}/balances/{address}", handlers.Accounts.Balance)
	mux.HandleFunc("POST /api/assets/{asset}/approve", handlers.Accounts.Approve)
	mux.HandleFunc("POST /api/assets/{asset}/mint", handlers.Accounts.Mint)
	mux.HandleFunc("GET /api/escrow", handlers.Accounts.Escrow)
	mux.HandleFunc("GET /api/events", handlers.Accounts.Events)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Outermost first: CORS, logging, rate limit, auth.
	var h http.Handler = mux
	h = middleware.Auth(tokens)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
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
