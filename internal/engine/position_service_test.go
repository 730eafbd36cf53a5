package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streakvault/streakvault/internal/domain"
)

func TestCreatePosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pos, err := env.positions.CreatePosition(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", pos.Owner)
	assert.Equal(t, domain.PositionKey("alice"), pos.Key)
	assert.False(t, pos.Started())

	_, err = env.positions.CreatePosition(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestDeposit_Additive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fund(t, "alice", 1_000)
	_, err := env.positions.CreatePosition(ctx, "alice")
	require.NoError(t, err)

	pos, err := env.positions.Deposit(ctx, "alice", 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), pos.DepositAmount)

	pos, err = env.positions.Deposit(ctx, "alice", 600)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), pos.DepositAmount)

	// Funds moved from the user's custodial balance into the vault.
	assert.Equal(t, uint64(0), env.balance(t, domain.UserAccount("alice")))
	assert.Equal(t, uint64(1_000), env.balance(t, domain.VaultAccount))
}

func TestDeposit_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.positions.Deposit(ctx, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)

	_, err = env.positions.Deposit(ctx, "ghost", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Insufficient custodial balance rolls the whole deposit back.
	_, err = env.positions.CreatePosition(ctx, "alice")
	require.NoError(t, err)
	_, err = env.positions.Deposit(ctx, "alice", 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	pos, err := env.positions.GetPosition(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pos.DepositAmount)
}

func TestStartCourse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fund(t, "alice", 500)
	_, err := env.positions.CreatePosition(ctx, "alice")
	require.NoError(t, err)
	_, err = env.positions.Deposit(ctx, "alice", 500)
	require.NoError(t, err)

	pos, market, err := env.positions.StartCourse(ctx, "alice", 3)
	require.NoError(t, err)

	assert.True(t, pos.Started())
	assert.Equal(t, uint64(500), pos.InitialDepositAmount)
	assert.Equal(t, env.now, pos.DepositTimestamp)
	assert.Equal(t, env.now, pos.LastTaskTimestamp)
	assert.Equal(t, env.now+3*testParams().TaskCycleSeconds, pos.LockInEndTimestamp)
	assert.Equal(t, uint32(0), pos.CurrentStreak)

	// The first market covers the cycle starting now.
	assert.Equal(t, "alice", market.Subject)
	assert.Equal(t, "alice", market.Creator)
	assert.Equal(t, domain.MarketStatusOpen, market.Status)
	assert.Equal(t, env.now+testParams().AutoBettingWindowSeconds, market.BettingEndsAt)
	assert.Equal(t, env.now+testParams().TaskCycleSeconds, market.TaskDeadline)
	assert.Equal(t, market.TaskDeadline+testParams().GracePeriodSeconds, market.ResolutionAt)
	assert.Equal(t, domain.MarketKey("alice", market.TaskDeadline), market.ID)
}

func TestStartCourse_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.positions.CreatePosition(ctx, "alice")
	require.NoError(t, err)

	// No deposit yet.
	_, _, err = env.positions.StartCourse(ctx, "alice", 1)
	assert.ErrorIs(t, err, domain.ErrNoDeposit)

	env.fund(t, "alice", 100)
	_, err = env.positions.Deposit(ctx, "alice", 100)
	require.NoError(t, err)
	_, _, err = env.positions.StartCourse(ctx, "alice", 1)
	require.NoError(t, err)

	// Already started.
	_, _, err = env.positions.StartCourse(ctx, "alice", 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
}

func TestCompleteTask_StreakAndMisses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSubject(t, "alice", 100, 10)

	// Completion inside the first cycle extends the streak.
	env.now += 50
	pos, err := env.positions.CompleteTask(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pos.CurrentStreak)
	assert.Equal(t, uint32(0), pos.MissCount)
	assert.Equal(t, env.now, pos.LastTaskTimestamp)

	// Exactly one cycle later still counts.
	env.now += testParams().TaskCycleSeconds
	pos, err = env.positions.CompleteTask(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pos.CurrentStreak)
	assert.Equal(t, uint32(0), pos.MissCount)

	// A gap of two and a half cycles books two misses and restarts at 1.
	env.now += 2*testParams().TaskCycleSeconds + 51
	pos, err = env.positions.CompleteTask(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pos.CurrentStreak)
	assert.Equal(t, uint32(2), pos.MissCount)
}

func TestCompleteTask_NotStarted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.positions.CreatePosition(ctx, "alice")
	require.NoError(t, err)
	_, err = env.positions.CompleteTask(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotStarted)
}

func TestCreditYield(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSubject(t, "alice", 100, 1)

	pos, err := env.positions.CreditYield(ctx, "alice", 25)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), pos.AccruedYield)

	pos, err = env.positions.CreditYield(ctx, "alice", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), pos.AccruedYield)

	_, err = env.positions.CreditYield(ctx, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSubject(t, "alice", 1_000, 2)
	lockEnd := env.now + 2*testParams().TaskCycleSeconds

	_, err := env.positions.CreditYield(ctx, "alice", 25)
	require.NoError(t, err)
	env.backVault(t, 25)

	// One second short of the lock-in end.
	env.now = lockEnd - 1
	_, err = env.positions.Withdraw(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrLockInNotEnded)

	env.now = lockEnd
	payout, err := env.positions.Withdraw(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_025), payout)
	assert.Equal(t, uint64(1_025), env.balance(t, domain.UserAccount("alice")))

	pos, err := env.positions.GetPosition(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pos.DepositAmount)
	assert.Equal(t, uint64(0), pos.AccruedYield)
	assert.False(t, pos.Started())

	// The position is reusable for a fresh cycle.
	_, err = env.positions.Deposit(ctx, "alice", 500)
	require.NoError(t, err)
	_, _, err = env.positions.StartCourse(ctx, "alice", 1)
	require.NoError(t, err)
}

func TestEarlyWithdraw_PenaltyAndReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSubject(t, "alice", 1_000, 5)

	env.now += 10
	penalty, returned, err := env.positions.EarlyWithdraw(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), penalty)
	assert.Equal(t, uint64(500), returned)

	assert.Equal(t, uint64(500), env.balance(t, domain.UserAccount("alice")))
	assert.Equal(t, uint64(500), env.balance(t, domain.TreasuryAccount))
	assert.Equal(t, uint64(500), env.treasuryTotal(t))

	pos, err := env.positions.GetPosition(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pos.DepositAmount)
	assert.False(t, pos.Started())
}

func TestEarlyWithdraw_OddPrincipalFloors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSubject(t, "alice", 999, 5)

	penalty, returned, err := env.positions.EarlyWithdraw(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(499), penalty)
	assert.Equal(t, uint64(500), returned)
}

func TestEarlyWithdraw_AfterLockInEnds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSubject(t, "alice", 100, 1)

	env.now += testParams().TaskCycleSeconds
	_, _, err := env.positions.EarlyWithdraw(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrLockInAlreadyEnded)
}

// Early withdrawal erases the current-cycle market but leaves its escrow
// pool stranded: outstanding bets become unclaimable and the staked funds
// stay in the orphaned escrow account.
func TestEarlyWithdraw_StrandsOpenMarketEscrow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	market := env.startSubject(t, "alice", 1_000, 5)
	env.placeBet(t, market, "bob", 50, true)

	env.now += 10
	_, _, err := env.positions.EarlyWithdraw(ctx, "alice")
	require.NoError(t, err)

	// The market record is gone.
	_, err = env.markets.GetMarket(ctx, market.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Bob's stake is still sitting in the orphaned escrow account and his
	// claim has nothing to run against.
	assert.Equal(t, uint64(50), env.balance(t, domain.EscrowAccount(market.ID)))
	_, err = env.bets.ClaimWinnings(ctx, "bob", market.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
