package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/batchauction/internal/auth"
	"github.com/alanyoungcy/batchauction/internal/server"
	"github.com/alanyoungcy/batchauction/internal/server/handler"
	"github.com/alanyoungcy/batchauction/internal/server/ws"
	"github.com/alanyoungcy/batchauction/internal/service"
)

// ServerMode serves the HTTP API and the live notification stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps); err != nil {
		return fmt.Errorf("server mode: %w", err)
	}
	return g.Wait()
}

// KeeperMode runs only the background precalculate and settle loop.
func (a *App) KeeperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting keeper mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startKeeper(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the keeper in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startKeeper(ctx, g, deps)
	if err := a.startHTTPServer(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	return g.Wait()
}

func (a *App) startKeeper(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	archiver := deps.Archiver
	if !a.cfg.Keeper.Archive {
		archiver = nil
	}
	keeper := service.NewKeeper(deps.Service, archiver, service.KeeperConfig{
		Interval:     a.cfg.Keeper.Interval.Duration,
		StepsPerCall: uint64(a.cfg.Keeper.StepsPerCall),
	}, a.logger)
	g.Go(func() error {
		return keeper.Run(ctx)
	})
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to g.
// The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	tokens, err := auth.NewTokens(a.cfg.Server.JWTSecret, a.cfg.Server.TokenTTL.Duration)
	if err != nil {
		return err
	}
	challenges := auth.NewChallenges(a.cfg.Server.ChallengeTTL.Duration)

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(deps.Checks, a.logger),
		Auth:     handler.NewAuthHandler(challenges, tokens, a.logger),
		Auctions: handler.NewAuctionHandler(deps.Service, a.logger),
		Orders:   handler.NewOrderHandler(deps.Service, a.logger),
		Accounts: handler.NewAccountHandler(deps.Service, a.logger),
	}, tokens, deps.RateLimiter, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
	return nil
}
