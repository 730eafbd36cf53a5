package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streakvault/streakvault/internal/domain"
)

func TestPlaceBet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	market := env.startSubject(t, "alice", 100, 5)

	env.fund(t, "bob", 500)
	bet, err := env.bets.PlaceBet(ctx, "bob", market.ID, 200, true)
	require.NoError(t, err)
	assert.Equal(t, domain.BetKey(market.ID, "bob"), bet.Key)
	assert.Equal(t, uint64(200), bet.Amount)
	assert.True(t, bet.IsLong)
	assert.False(t, bet.Claimed)

	// Stake moved into escrow and the side total grew.
	assert.Equal(t, uint64(300), env.balance(t, domain.UserAccount("bob")))
	assert.Equal(t, uint64(200), env.balance(t, domain.EscrowAccount(market.ID)))

	m, err := env.markets.GetMarket(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), m.TotalLongAmount)
	assert.Equal(t, uint64(0), m.TotalShortAmount)

	// One bet per (market, bettor).
	_, err = env.bets.PlaceBet(ctx, "bob", market.ID, 100, false)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestPlaceBet_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	market := env.startSubject(t, "alice", 100, 5)

	_, err := env.bets.PlaceBet(ctx, "bob", "nope", 10, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.bets.PlaceBet(ctx, "bob", market.ID, 0, true)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)

	_, err = env.bets.PlaceBet(ctx, "alice", market.ID, 10, true)
	assert.ErrorIs(t, err, domain.ErrCannotBetOnSelf)

	// No custodial funds.
	_, err = env.bets.PlaceBet(ctx, "pauper", market.ID, 10, true)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Window closed.
	env.fund(t, "bob", 100)
	env.now = market.BettingEndsAt
	_, err = env.bets.PlaceBet(ctx, "bob", market.ID, 10, true)
	assert.ErrorIs(t, err, domain.ErrWindowClosed)

	// Not open once resolution starts.
	m, err := env.markets.TriggerResolution(ctx, market.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusAwaitingResolution, m.Status)
	_, err = env.bets.PlaceBet(ctx, "bob", market.ID, 10, true)
	assert.ErrorIs(t, err, domain.ErrNotOpenForBets)
}

func TestClaimWinnings_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	market := env.startSubject(t, "alice", 100, 5)
	env.placeBet(t, market, "bob", 100, true)
	env.placeBet(t, market, "carol", 300, false)

	// Subject never completes the task, so shorts win. Fee is 2% of 400.
	env.resolve(t, market)

	payout, err := env.bets.ClaimWinnings(ctx, "carol", market.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(392), payout)
	assert.Equal(t, uint64(392), env.balance(t, domain.UserAccount("carol")))

	// The loser's claim settles at zero but still flips Claimed.
	payout, err = env.bets.ClaimWinnings(ctx, "bob", market.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), payout)

	bet, err := env.bets.GetBet(ctx, market.ID, "bob")
	require.NoError(t, err)
	assert.True(t, bet.Claimed)

	// At most once, either way.
	_, err = env.bets.ClaimWinnings(ctx, "carol", market.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	_, err = env.bets.ClaimWinnings(ctx, "bob", market.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestClaimWinnings_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	market := env.startSubject(t, "alice", 100, 5)
	env.placeBet(t, market, "bob", 100, true)

	// Only the bettor may claim their bet.
	_, err := env.bets.ClaimWinnings(ctx, "mallory", market.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	// No claims before resolution has extracted the fee.
	_, err = env.bets.ClaimWinnings(ctx, "bob", market.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrFeeNotClaimed)

	_, err = env.bets.ClaimWinnings(ctx, "bob", market.ID, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// The sum of floored payouts never exceeds the net pool; the remainder stays
// in escrow as dust.
func TestClaimWinnings_ConservesPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	market := env.startSubject(t, "alice", 100, 5)

	stakes := map[string]uint64{"bob": 17, "carol": 29, "dave": 54}
	for bettor, amount := range stakes {
		env.placeBet(t, market, bettor, amount, false)
	}
	env.placeBet(t, market, "erin", 100, true)

	env.resolve(t, market) // shorts win

	total := uint64(200)
	fee := total * uint64(testParams().DefaultFeeBps) / 10_000
	netPool := total - fee

	var paid uint64
	for bettor := range stakes {
		p, err := env.bets.ClaimWinnings(ctx, bettor, market.ID, bettor)
		require.NoError(t, err)
		paid += p
	}
	_, err := env.bets.ClaimWinnings(ctx, "erin", market.ID, "erin")
	require.NoError(t, err)

	assert.LessOrEqual(t, paid, netPool)
	assert.Equal(t, netPool-paid, env.balance(t, domain.EscrowAccount(market.ID)))
}

func TestListByMarketAndTreasuryTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	market := env.startSubject(t, "alice", 100, 5)
	env.placeBet(t, market, "bob", 100, true)
	env.placeBet(t, market, "carol", 300, false)

	bets, err := env.bets.ListByMarket(ctx, market.ID)
	require.NoError(t, err)
	assert.Len(t, bets, 2)

	total, err := env.bets.TreasuryTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)

	env.resolve(t, market)
	total, err = env.bets.TreasuryTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), total)
}

func TestAdminService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.admin.CreditBalance(ctx, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)

	err = env.admin.CreditBalance(ctx, "alice", 750)
	require.NoError(t, err)

	bal, err := env.admin.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(750), bal)
}
