// Package memory implements the ledger gateway interfaces with in-process
// state. It backs single-node deployments and the engine test suite, and
// models the same all-or-nothing commit contract as the PostgreSQL gateway:
// each Atomic call runs against a copy of the state and the copy only
// replaces the live state when the operation succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/streakvault/streakvault/internal/domain"
)

// Clock supplies the current time in whole Unix seconds. It is read once per
// operation.
type Clock func() int64

// Gateway is the in-memory ledger gateway. All operations are serialized by
// a single mutex, which trivially satisfies the single-writer-per-record
// guarantee.
type Gateway struct {
	mu    sync.Mutex
	st    *state
	clock Clock
}

// NewGateway creates an empty in-memory gateway. A nil clock defaults to the
// wall clock.
func NewGateway(clock Clock) *Gateway {
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	return &Gateway{
		st:    newState(),
		clock: clock,
	}
}

// Atomic runs fn against a copy of the current state and commits the copy
// only when fn returns nil.
func (g *Gateway) Atomic(ctx context.Context, fn func(ctx context.Context, l domain.Ledger) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := g.st.clone()
	led := &ledger{st: snap, now: g.clock()}

	if err := fn(ctx, led); err != nil {
		return err
	}

	g.st = snap
	return nil
}

// state holds every record kind the gateway persists.
type state struct {
	positions map[string]domain.UserPosition
	markets   map[string]domain.Market
	bets      map[string]domain.Bet
	balances  map[domain.Account]uint64
	treasury  uint64
}

func newState() *state {
	return &state{
		positions: make(map[string]domain.UserPosition),
		markets:   make(map[string]domain.Market),
		bets:      make(map[string]domain.Bet),
		balances:  make(map[domain.Account]uint64),
	}
}

func (s *state) clone() *state {
	out := &state{
		positions: make(map[string]domain.UserPosition, len(s.positions)),
		markets:   make(map[string]domain.Market, len(s.markets)),
		bets:      make(map[string]domain.Bet, len(s.bets)),
		balances:  make(map[domain.Account]uint64, len(s.balances)),
		treasury:  s.treasury,
	}
	for k, v := range s.positions {
		out.positions[k] = v
	}
	for k, v := range s.markets {
		out.markets[k] = v
	}
	for k, v := range s.bets {
		out.bets[k] = v
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	return out
}

// ledger is the transactional view handed to one operation.
type ledger struct {
	st  *state
	now int64
}

func (l *ledger) Positions() domain.PositionStore { return (*positionStore)(l) }
func (l *ledger) Markets() domain.MarketStore     { return (*marketStore)(l) }
func (l *ledger) Bets() domain.BetStore           { return (*betStore)(l) }
func (l *ledger) Treasury() domain.TreasuryStore  { return (*treasuryStore)(l) }
func (l *ledger) Balances() domain.Balances       { return (*balanceStore)(l) }
func (l *ledger) Now() int64                      { return l.now }

type positionStore ledger

func (s *positionStore) Create(_ context.Context, p domain.UserPosition) error {
	if _, ok := s.st.positions[p.Key]; ok {
		return domain.ErrAlreadyExists
	}
	s.st.positions[p.Key] = p
	return nil
}

func (s *positionStore) Get(_ context.Context, key string) (domain.UserPosition, error) {
	p, ok := s.st.positions[key]
	if !ok {
		return domain.UserPosition{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *positionStore) Update(_ context.Context, p domain.UserPosition) error {
	if _, ok := s.st.positions[p.Key]; !ok {
		return domain.ErrNotFound
	}
	s.st.positions[p.Key] = p
	return nil
}

type marketStore ledger

func (s *marketStore) Create(_ context.Context, m domain.Market) error {
	if _, ok := s.st.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.st.markets[m.ID] = m
	return nil
}

func (s *marketStore) Get(_ context.Context, id string) (domain.Market, error) {
	m, ok := s.st.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *marketStore) Update(_ context.Context, m domain.Market) error {
	if _, ok := s.st.markets[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.st.markets[m.ID] = m
	return nil
}

func (s *marketStore) Delete(_ context.Context, id string) error {
	if _, ok := s.st.markets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.st.markets, id)
	return nil
}

func (s *marketStore) ListBySubject(_ context.Context, subject string) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.st.markets {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskDeadline < out[j].TaskDeadline })
	return out, nil
}

func (s *marketStore) ListDue(_ context.Context, now int64) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.st.markets {
		if !m.Status.Terminal() && m.BettingEndsAt <= now {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BettingEndsAt < out[j].BettingEndsAt })
	return out, nil
}

type betStore ledger

func (s *betStore) Create(_ context.Context, b domain.Bet) error {
	if _, ok := s.st.bets[b.Key]; ok {
		return domain.ErrAlreadyExists
	}
	s.st.bets[b.Key] = b
	return nil
}

func (s *betStore) Get(_ context.Context, key string) (domain.Bet, error) {
	b, ok := s.st.bets[key]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *betStore) Update(_ context.Context, b domain.Bet) error {
	if _, ok := s.st.bets[b.Key]; !ok {
		return domain.ErrNotFound
	}
	s.st.bets[b.Key] = b
	return nil
}

func (s *betStore) ListByMarket(_ context.Context, marketID string) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range s.st.bets {
		if b.MarketID == marketID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bettor < out[j].Bettor })
	return out, nil
}

func (s *betStore) DeleteByMarket(_ context.Context, marketID string) error {
	for k, b := range s.st.bets {
		if b.MarketID == marketID {
			delete(s.st.bets, k)
		}
	}
	return nil
}

type treasuryStore ledger

func (s *treasuryStore) Add(_ context.Context, amount uint64) error {
	total := s.st.treasury + amount
	if total < s.st.treasury {
		return domain.ErrArithmetic
	}
	s.st.treasury = total
	return nil
}

func (s *treasuryStore) Total(_ context.Context) (uint64, error) {
	return s.st.treasury, nil
}

type balanceStore ledger

func (s *balanceStore) Transfer(_ context.Context, from, to domain.Account, amount uint64) error {
	if from == to {
		return nil
	}
	have := s.st.balances[from]
	if have < amount {
		return domain.ErrInsufficientFunds
	}
	dst := s.st.balances[to] + amount
	if dst < s.st.balances[to] {
		return domain.ErrArithmetic
	}
	s.st.balances[from] = have - amount
	s.st.balances[to] = dst
	return nil
}

func (s *balanceStore) Balance(_ context.Context, account domain.Account) (uint64, error) {
	return s.st.balances[account], nil
}

func (s *balanceStore) Credit(_ context.Context, account domain.Account, amount uint64) error {
	next := s.st.balances[account] + amount
	if next < s.st.balances[account] {
		return domain.ErrArithmetic
	}
	s.st.balances[account] = next
	return nil
}

// Compile-time interface checks.
var (
	_ domain.Gateway = (*Gateway)(nil)
	_ domain.Ledger  = (*ledger)(nil)
)
