package domain

import "context"

// PositionStore persists user positions, keyed by PositionKey(owner).
type PositionStore interface {
	Create(ctx context.Context, p UserPosition) error
	Get(ctx context.Context, key string) (UserPosition, error)
	Update(ctx context.Context, p UserPosition) error
}

// MarketStore persists markets, keyed by MarketKey(subject, deadline).
// Delete reclaims the record when a market is closed.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Get(ctx context.Context, id string) (Market, error)
	Update(ctx context.Context, m Market) error
	Delete(ctx context.Context, id string) error
	ListBySubject(ctx context.Context, subject string) ([]Market, error)
	// ListDue returns non-terminal markets whose betting window has closed
	// by now, for the resolution daemon.
	ListDue(ctx context.Context, now int64) ([]Market, error)
}

// BetStore persists bets, keyed by BetKey(market, bettor). Create fails with
// ErrAlreadyExists for a duplicate key, which is the double-bet guard.
type BetStore interface {
	Create(ctx context.Context, b Bet) error
	Get(ctx context.Context, key string) (Bet, error)
	Update(ctx context.Context, b Bet) error
	ListByMarket(ctx context.Context, marketID string) ([]Bet, error)
	DeleteByMarket(ctx context.Context, marketID string) error
}

// TreasuryStore tracks the running fee counter.
type TreasuryStore interface {
	Add(ctx context.Context, amount uint64) error
	Total(ctx context.Context) (uint64, error)
}

// Balances is the atomic value-transfer primitive between custodial
// accounts. Transfer moves the full amount or fails entirely; the core never
// partially moves funds.
type Balances interface {
	Transfer(ctx context.Context, from, to Account, amount uint64) error
	Balance(ctx context.Context, account Account) (uint64, error)
	// Credit mints amount into an account. It exists for operator funding
	// (user top-ups, yield backing) and tests; core operations never call it.
	Credit(ctx context.Context, account Account, amount uint64) error
}

// Ledger is the transactional view a single operation runs against. Now is
// read once per operation and treated as constant for its duration.
type Ledger interface {
	Positions() PositionStore
	Markets() MarketStore
	Bets() BetStore
	Treasury() TreasuryStore
	Balances() Balances
	Now() int64
}

// Gateway is the external ledger collaborator: it hands the engine a
// consistent Ledger snapshot and commits all writes and transfers together,
// or discards them all when fn returns an error.
type Gateway interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error
}

// AuditEntry is a single append-only audit row.
type AuditEntry struct {
	ID        string
	Event     string
	Detail    map[string]any
	CreatedAt int64
}

// AuditStore persists the append-only audit log. Writes are best-effort and
// happen outside the operation's atomic scope.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}
