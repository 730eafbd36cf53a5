// Package app assembles and runs the service. Wire builds the dependency
// graph from configuration; the mode functions in modes.go decide which
// pieces of it actually run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streakvault/streakvault/internal/config"
)

// App ties configuration to the running process. Cleanup functions accumulate
// in closers as resources come up and run in reverse on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and blocks in the configured mode until ctx ends.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "serve":
		return a.ServeMode(ctx, deps)
	case "resolve":
		return a.ResolveMode(ctx, deps)
	case "migrate":
		return a.MigrateMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		// Validate catches this before Run; kept for direct callers.
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close releases everything Run acquired, newest first. Calling it again is
// a no-op.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
