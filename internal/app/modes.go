package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streakvault/streakvault/internal/notify"
	"github.com/streakvault/streakvault/internal/resolver"
	"github.com/streakvault/streakvault/internal/server"
	"github.com/streakvault/streakvault/internal/server/handler"
	"github.com/streakvault/streakvault/internal/server/ws"
)

// shutdownTimeout bounds how long the HTTP server waits for in-flight
// requests after the context is cancelled.
const shutdownTimeout = 10 * time.Second

// ServeMode runs the HTTP + WebSocket API without the background resolution
// daemon. Markets still advance via the manual resolve endpoint.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := a.startHub(ctx, g, deps)
	a.startServer(ctx, g, deps, hub)
	a.startAlerter(ctx, g, deps)

	return g.Wait()
}

// ResolveMode runs only the background resolution daemon. It is intended for
// a dedicated worker instance alongside one or more serve instances.
func (a *App) ResolveMode(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Resolver.Enabled {
		return fmt.Errorf("app: resolve mode requires resolver.enabled")
	}
	a.logger.InfoContext(ctx, "starting resolve mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startResolver(ctx, g, deps)
	a.startAlerter(ctx, g, deps)

	return g.Wait()
}

// MigrateMode applies database migrations and exits. The migrations already
// ran during wiring; this mode exists so deploy pipelines can run them as a
// discrete step.
func (a *App) MigrateMode(ctx context.Context, deps *Dependencies) error {
	if deps.PG == nil {
		return fmt.Errorf("app: migrate mode requires the postgres driver")
	}
	a.logger.InfoContext(ctx, "migrations applied")
	return nil
}

// FullMode runs the API server and the resolution daemon in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := a.startHub(ctx, g, deps)
	a.startServer(ctx, g, deps, hub)
	a.startResolver(ctx, g, deps)
	a.startAlerter(ctx, g, deps)

	return g.Wait()
}

// startHub starts the WebSocket hub goroutine and returns the hub for route
// registration.
func (a *App) startHub(ctx context.Context, g *errgroup.Group, deps *Dependencies) *ws.Hub {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	return hub
}

// startServer builds the handler set, registers routes, and adds goroutines
// for serving and for graceful shutdown on context cancellation.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	pingers := map[string]handler.Pinger{}
	if deps.PG != nil {
		pingers["postgres"] = deps.PG
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(pingers, a.logger),
		Positions: handler.NewPositionHandler(deps.Positions, a.logger),
		Markets:   handler.NewMarketHandler(deps.Markets, deps.MarketCache, a.logger),
		Bets:      handler.NewBetHandler(deps.Bets, a.logger),
		Treasury:  handler.NewTreasuryHandler(deps.Bets, a.logger),
		Admin:     handler.NewAdminHandler(deps.Admin, deps.AuditStore, deps.BlobReader, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKeyHash:  a.cfg.Server.APIKeyHash,
		AdminAuth:   deps.AdminAuth,
		RateLimiter: deps.RateLimiter,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown error", "error", err.Error())
		}
		return ctx.Err()
	})
}

// startResolver adds the resolution daemon goroutine when enabled.
func (a *App) startResolver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Resolver.Enabled {
		a.logger.InfoContext(ctx, "resolver disabled")
		return
	}

	daemon := resolver.New(deps.Markets, deps.Bets, deps.LockManager, deps.Archiver, resolver.Config{
		Interval: a.cfg.Resolver.Interval.Duration,
		LockTTL:  a.cfg.Resolver.LockTTL.Duration,
	}, a.logger)

	g.Go(func() error {
		err := daemon.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
}

// startAlerter bridges settlement facts to external notification channels
// when any sender is configured.
func (a *App) startAlerter(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Notifier == nil {
		return
	}

	alerter := notify.NewAlerter(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		err := alerter.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
}
