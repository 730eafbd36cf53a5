package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streakvault/streakvault/internal/domain"
	"github.com/streakvault/streakvault/internal/store/memory"
)

// testParams shrinks the protocol windows so tests can walk a full market
// lifecycle with small clock jumps.
func testParams() Params {
	return Params{
		TaskCycleSeconds:         100,
		GracePeriodSeconds:       10,
		DefaultFeeBps:            200,
		AutoBettingWindowSeconds: 40,
	}
}

// testEnv wires the full engine against the in-memory gateway with a
// manually advanced clock.
type testEnv struct {
	now       int64
	gw        *memory.Gateway
	positions *PositionService
	markets   *MarketEngine
	bets      *BetService
	admin     *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{now: 1_000_000}
	env.gw = memory.NewGateway(func() int64 { return env.now })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := memory.NewSignalBus()
	audit := memory.NewAuditStore()
	params := testParams()

	env.markets = NewMarketEngine(env.gw, params, bus, audit, logger)
	env.positions = NewPositionService(env.gw, env.markets, params, bus, audit, logger)
	env.bets = NewBetService(env.gw, params, bus, audit, logger)
	env.admin = NewAdminService(env.gw, bus, audit, logger)
	return env
}

// fund credits a user's custodial balance so deposits and bets have something
// to draw from.
func (e *testEnv) fund(t *testing.T, user string, amount uint64) {
	t.Helper()
	err := e.gw.Atomic(context.Background(), func(ctx context.Context, l domain.Ledger) error {
		return l.Balances().Credit(ctx, domain.UserAccount(user), amount)
	})
	require.NoError(t, err)
}

// backVault mints into the vault account, standing in for the operator
// funding accrued yield.
func (e *testEnv) backVault(t *testing.T, amount uint64) {
	t.Helper()
	err := e.gw.Atomic(context.Background(), func(ctx context.Context, l domain.Ledger) error {
		return l.Balances().Credit(ctx, domain.VaultAccount, amount)
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, account domain.Account) uint64 {
	t.Helper()
	var out uint64
	err := e.gw.Atomic(context.Background(), func(ctx context.Context, l domain.Ledger) error {
		var err error
		out, err = l.Balances().Balance(ctx, account)
		return err
	})
	require.NoError(t, err)
	return out
}

func (e *testEnv) treasuryTotal(t *testing.T) uint64 {
	t.Helper()
	var out uint64
	err := e.gw.Atomic(context.Background(), func(ctx context.Context, l domain.Ledger) error {
		var err error
		out, err = l.Treasury().Total(ctx)
		return err
	})
	require.NoError(t, err)
	return out
}

// startSubject funds a user, creates their position, deposits, and starts a
// course, returning the auto-created first market.
func (e *testEnv) startSubject(t *testing.T, user string, deposit uint64, lockInDays uint32) domain.Market {
	t.Helper()
	ctx := context.Background()

	e.fund(t, user, deposit)
	_, err := e.positions.CreatePosition(ctx, user)
	require.NoError(t, err)
	_, err = e.positions.Deposit(ctx, user, deposit)
	require.NoError(t, err)
	_, market, err := e.positions.StartCourse(ctx, user, lockInDays)
	require.NoError(t, err)
	return market
}

// placeBet funds a bettor and stakes on the given market.
func (e *testEnv) placeBet(t *testing.T, market domain.Market, bettor string, amount uint64, isLong bool) domain.Bet {
	t.Helper()
	e.fund(t, bettor, amount)
	bet, err := e.bets.PlaceBet(context.Background(), bettor, market.ID, amount, isLong)
	require.NoError(t, err)
	return bet
}

// resolve advances a market through both resolution phases: betting close
// first, then the outcome decision after the grace period.
func (e *testEnv) resolve(t *testing.T, market domain.Market) domain.Market {
	t.Helper()
	ctx := context.Background()

	if e.now < market.BettingEndsAt {
		e.now = market.BettingEndsAt
	}
	m, err := e.markets.TriggerResolution(ctx, market.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusAwaitingResolution, m.Status)

	if e.now < market.ResolutionAt {
		e.now = market.ResolutionAt
	}
	m, err = e.markets.TriggerResolution(ctx, market.ID)
	require.NoError(t, err)
	require.True(t, m.Status.Terminal())
	return m
}
