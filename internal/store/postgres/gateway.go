package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streakvault/streakvault/internal/domain"
)

// Clock supplies the current time in whole Unix seconds. It is read once per
// operation.
type Clock func() int64

// Gateway implements domain.Gateway over a pgx connection pool. Every
// operation runs in a serializable transaction, so all of its record writes
// and balance transfers commit together or not at all.
type Gateway struct {
	pool  *pgxpool.Pool
	clock Clock
}

// NewGateway creates a Gateway backed by the given client. A nil clock
// defaults to the wall clock.
func NewGateway(c *Client, clock Clock) *Gateway {
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	return &Gateway{pool: c.Pool(), clock: clock}
}

// Atomic runs fn inside one serializable transaction.
func (g *Gateway) Atomic(ctx context.Context, fn func(ctx context.Context, l domain.Ledger) error) error {
	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	led := &ledger{tx: tx, now: g.clock()}
	if err := fn(ctx, led); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// ledger is the transactional view handed to one operation.
type ledger struct {
	tx  pgx.Tx
	now int64
}

func (l *ledger) Positions() domain.PositionStore { return &positionStore{tx: l.tx} }
func (l *ledger) Markets() domain.MarketStore     { return &marketStore{tx: l.tx} }
func (l *ledger) Bets() domain.BetStore           { return &betStore{tx: l.tx} }
func (l *ledger) Treasury() domain.TreasuryStore  { return &treasuryStore{tx: l.tx} }
func (l *ledger) Balances() domain.Balances       { return &balanceStore{tx: l.tx} }
func (l *ledger) Now() int64                      { return l.now }

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (duplicate key).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Compile-time interface checks.
var (
	_ domain.Gateway = (*Gateway)(nil)
	_ domain.Ledger  = (*ledger)(nil)
)
