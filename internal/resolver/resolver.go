// Package resolver runs the background loop that advances due markets
// through resolution.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/streakvault/streakvault/internal/domain"
)

// MarketResolver is the slice of the market engine the daemon drives.
type MarketResolver interface {
	ListDue(ctx context.Context, now int64) ([]domain.Market, error)
	TriggerResolution(ctx context.Context, marketID string) (domain.Market, error)
}

// BetLister provides the bets needed for settlement snapshots.
type BetLister interface {
	ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error)
}

// Config controls the daemon's pacing.
type Config struct {
	// Interval between scans for due markets.
	Interval time.Duration

	// LockTTL bounds how long one scan may hold the cross-instance lock.
	LockTTL time.Duration
}

// Daemon periodically scans for markets whose betting window or grace period
// has elapsed and advances them. A distributed lock keeps concurrent
// instances from double-processing; per-market idempotence in the engine is
// the real safety net.
type Daemon struct {
	markets  MarketResolver
	bets     BetLister
	locks    domain.LockManager
	archiver domain.SettlementArchiver // may be nil
	cfg      Config
	logger   *slog.Logger
}

// New creates a Daemon.
func New(markets MarketResolver, bets BetLister, locks domain.LockManager, archiver domain.SettlementArchiver, cfg Config, logger *slog.Logger) *Daemon {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	return &Daemon{
		markets:  markets,
		bets:     bets,
		locks:    locks,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "resolver")),
	}
}

// Run scans until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.logger.InfoContext(ctx, "resolver: started",
		slog.Duration("interval", d.cfg.Interval),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "resolver: stopped")
			return ctx.Err()
		case <-ticker.C:
			d.scan(ctx)
		}
	}
}

// scan processes one batch of due markets under the cross-instance lock.
func (d *Daemon) scan(ctx context.Context) {
	unlock, err := d.locks.Acquire(ctx, "resolver:scan", d.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return
		}
		d.logger.WarnContext(ctx, "resolver: lock acquire failed",
			slog.String("error", err.Error()),
		)
		return
	}
	defer unlock()

	due, err := d.markets.ListDue(ctx, time.Now().Unix())
	if err != nil {
		d.logger.WarnContext(ctx, "resolver: list due failed",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, m := range due {
		d.advance(ctx, m)
	}
}

func (d *Daemon) advance(ctx context.Context, m domain.Market) {
	market, err := d.markets.TriggerResolution(ctx, m.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotReadyForResolution),
			errors.Is(err, domain.ErrGracePeriodNotOver):
			// Not due yet; the next scan will pick it up.
		case errors.Is(err, domain.ErrAlreadyResolved),
			errors.Is(err, domain.ErrNotFound):
			// Raced with a manual trigger or a close.
		default:
			d.logger.WarnContext(ctx, "resolver: trigger failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	d.logger.InfoContext(ctx, "resolver: market advanced",
		slog.String("market_id", market.ID),
		slog.String("status", string(market.Status)),
	)

	if market.Status.Terminal() {
		d.archive(ctx, market)
	}
}

// archive writes a cold-storage snapshot of a freshly resolved market.
// Failures are logged; the snapshot can be retaken before CloseMarket.
func (d *Daemon) archive(ctx context.Context, market domain.Market) {
	if d.archiver == nil {
		return
	}

	bets, err := d.bets.ListByMarket(ctx, market.ID)
	if err != nil {
		d.logger.WarnContext(ctx, "resolver: list bets for archive failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := d.archiver.ArchiveMarket(ctx, market, bets); err != nil {
		d.logger.WarnContext(ctx, "resolver: archive failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	d.logger.InfoContext(ctx, "resolver: market archived",
		slog.String("market_id", market.ID),
		slog.Int("bets", len(bets)),
	)
}
