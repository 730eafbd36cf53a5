package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streakvault/streakvault/internal/domain"
)

// PositionService manages user positions: deposits, course lock-in, task
// evidence, yield credits, and the two withdrawal paths.
type PositionService struct {
	gateway domain.Gateway
	markets *MarketEngine
	params  Params
	pub     publisher
	logger  *slog.Logger
}

// NewPositionService creates a PositionService. markets is used to create
// the subject's first market when a course starts.
func NewPositionService(
	gateway domain.Gateway,
	markets *MarketEngine,
	params Params,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		gateway: gateway,
		markets: markets,
		params:  params,
		pub:     publisher{bus: bus, audit: audit, logger: logger},
		logger:  logger,
	}
}

// CreatePosition initializes an empty position for user. It fails with
// ErrAlreadyExists when the user already has one.
func (s *PositionService) CreatePosition(ctx context.Context, user string) (domain.UserPosition, error) {
	if user == "" {
		return domain.UserPosition{}, fmt.Errorf("position_service: create: owner identity required")
	}

	pos := domain.UserPosition{
		Key:   domain.PositionKey(user),
		Owner: user,
	}

	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		return l.Positions().Create(ctx, pos)
	})
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("position_service: create for %q: %w", user, err)
	}

	s.pub.emit(ctx, domain.ChannelPositions, "position_created", map[string]any{
		"owner": user,
		"key":   pos.Key,
	})

	s.logger.InfoContext(ctx, "position_service: position created",
		slog.String("owner", user),
	)
	return pos, nil
}

// Deposit moves amount from the user's custodial balance into the vault and
// adds it to the position principal. Deposits are repeatable and additive and
// never touch the lock-in fields.
func (s *PositionService) Deposit(ctx context.Context, user string, amount uint64) (domain.UserPosition, error) {
	if amount == 0 {
		return domain.UserPosition{}, fmt.Errorf("position_service: deposit: %w", domain.ErrZeroAmount)
	}

	var pos domain.UserPosition
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		pos, err = l.Positions().Get(ctx, domain.PositionKey(user))
		if err != nil {
			return err
		}

		if err := l.Balances().Transfer(ctx, domain.UserAccount(user), domain.VaultAccount, amount); err != nil {
			return err
		}

		pos.DepositAmount, err = addU64(pos.DepositAmount, amount)
		if err != nil {
			return err
		}
		return l.Positions().Update(ctx, pos)
	})
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("position_service: deposit for %q: %w", user, err)
	}

	s.pub.emit(ctx, domain.ChannelPositions, "deposit", map[string]any{
		"owner":          user,
		"amount":         amount,
		"deposit_amount": pos.DepositAmount,
	})
	return pos, nil
}

// StartCourse locks the current principal for lockInDays and opens the
// subject's first market for the cycle that begins now. Both writes commit
// together: a failed market creation voids the lock-in.
func (s *PositionService) StartCourse(ctx context.Context, user string, lockInDays uint32) (domain.UserPosition, domain.Market, error) {
	var (
		pos    domain.UserPosition
		market domain.Market
	)

	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		pos, err = l.Positions().Get(ctx, domain.PositionKey(user))
		if err != nil {
			return err
		}
		if pos.Started() {
			return domain.ErrAlreadyStarted
		}
		if pos.DepositAmount == 0 {
			return domain.ErrNoDeposit
		}

		now := l.Now()

		lockSeconds, err := mulI64(int64(lockInDays), s.params.TaskCycleSeconds)
		if err != nil {
			return err
		}
		lockEnd, err := addI64(now, lockSeconds)
		if err != nil {
			return err
		}

		pos.InitialDepositAmount = pos.DepositAmount
		pos.DepositTimestamp = now
		pos.LastTaskTimestamp = now
		pos.LockInEndTimestamp = lockEnd
		pos.CurrentStreak = 0
		pos.MissCount = 0

		if err := l.Positions().Update(ctx, pos); err != nil {
			return err
		}

		// The first market is created in the same atomic scope, anchored on
		// the just-set task timestamp.
		market, err = s.markets.createInLedger(ctx, l, user, pos, s.params.AutoBettingWindowSeconds, now)
		return err
	})
	if err != nil {
		return domain.UserPosition{}, domain.Market{}, fmt.Errorf("position_service: start course for %q: %w", user, err)
	}

	s.pub.emit(ctx, domain.ChannelPositions, "course_started", map[string]any{
		"owner":           user,
		"locked_amount":   pos.DepositAmount,
		"lock_in_days":    lockInDays,
		"lock_in_end":     pos.LockInEndTimestamp,
		"first_market_id": market.ID,
	})
	s.pub.emit(ctx, domain.ChannelMarkets, "market_created", marketFactFields(market))

	s.logger.InfoContext(ctx, "position_service: course started",
		slog.String("owner", user),
		slog.Uint64("locked_amount", pos.DepositAmount),
		slog.Int64("lock_in_end", pos.LockInEndTimestamp),
		slog.String("market_id", market.ID),
	)
	return pos, market, nil
}

// CompleteTask records task-completion evidence for the current cycle. A
// completion within one cycle of the previous one extends the streak; a
// later one books the skipped cycles as misses and starts a new streak.
// Resolution reads LastTaskTimestamp directly, so this is the only write a
// market outcome ever depends on.
func (s *PositionService) CompleteTask(ctx context.Context, user string) (domain.UserPosition, error) {
	var pos domain.UserPosition
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		pos, err = l.Positions().Get(ctx, domain.PositionKey(user))
		if err != nil {
			return err
		}
		if !pos.Started() {
			return domain.ErrNotStarted
		}

		now := l.Now()
		gap := now - pos.LastTaskTimestamp
		if gap <= s.params.TaskCycleSeconds {
			pos.CurrentStreak++
		} else {
			missed := (gap - 1) / s.params.TaskCycleSeconds
			pos.MissCount += uint32(missed)
			pos.CurrentStreak = 1
		}
		pos.LastTaskTimestamp = now

		return l.Positions().Update(ctx, pos)
	})
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("position_service: complete task for %q: %w", user, err)
	}

	s.pub.emit(ctx, domain.ChannelPositions, "task_completed", map[string]any{
		"owner":     user,
		"streak":    pos.CurrentStreak,
		"misses":    pos.MissCount,
		"last_task": pos.LastTaskTimestamp,
	})
	return pos, nil
}

// CreditYield records an externally generated yield amount against the
// position. It is a pure bookkeeping credit; backing the vault with the
// corresponding funds is the operator's responsibility.
func (s *PositionService) CreditYield(ctx context.Context, user string, amount uint64) (domain.UserPosition, error) {
	if amount == 0 {
		return domain.UserPosition{}, fmt.Errorf("position_service: credit yield: %w", domain.ErrZeroAmount)
	}

	var pos domain.UserPosition
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		pos, err = l.Positions().Get(ctx, domain.PositionKey(user))
		if err != nil {
			return err
		}
		if !pos.Started() {
			return domain.ErrNotStarted
		}

		pos.AccruedYield, err = addU64(pos.AccruedYield, amount)
		if err != nil {
			return err
		}
		return l.Positions().Update(ctx, pos)
	})
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("position_service: credit yield for %q: %w", user, err)
	}

	s.pub.emit(ctx, domain.ChannelPositions, "yield_credited", map[string]any{
		"owner":         user,
		"amount":        amount,
		"accrued_yield": pos.AccruedYield,
	})
	return pos, nil
}

// Withdraw pays out principal plus accrued yield once the lock-in period has
// ended, and resets the position so a new cycle can begin.
func (s *PositionService) Withdraw(ctx context.Context, user string) (uint64, error) {
	var payout uint64
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		pos, err := l.Positions().Get(ctx, domain.PositionKey(user))
		if err != nil {
			return err
		}

		now := l.Now()
		if now < pos.LockInEndTimestamp {
			return domain.ErrLockInNotEnded
		}

		payout, err = addU64(pos.DepositAmount, pos.AccruedYield)
		if err != nil {
			return err
		}
		if payout > 0 {
			if err := l.Balances().Transfer(ctx, domain.VaultAccount, domain.UserAccount(user), payout); err != nil {
				return err
			}
		}

		pos.DepositAmount = 0
		pos.AccruedYield = 0
		pos.LockInEndTimestamp = 0
		return l.Positions().Update(ctx, pos)
	})
	if err != nil {
		return 0, fmt.Errorf("position_service: withdraw for %q: %w", user, err)
	}

	s.pub.emit(ctx, domain.ChannelPositions, "withdrawn", map[string]any{
		"owner":  user,
		"payout": payout,
	})

	s.logger.InfoContext(ctx, "position_service: withdrawal complete",
		slog.String("owner", user),
		slog.Uint64("payout", payout),
	)
	return payout, nil
}

// EarlyWithdraw exits a course before the lock-in ends. Half of the principal
// (integer floor) goes to the treasury as a penalty; the remainder plus any
// accrued yield returns to the user. The market for the subject's current
// task cycle is reclaimed in the same operation, regardless of bets still
// outstanding on it — bets on a reclaimed market become unclaimable. See
// DESIGN.md for why this behavior is preserved as-is.
func (s *PositionService) EarlyWithdraw(ctx context.Context, user string) (penalty, returned uint64, err error) {
	var closedMarket string
	err = s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		pos, err := l.Positions().Get(ctx, domain.PositionKey(user))
		if err != nil {
			return err
		}

		now := l.Now()
		if now >= pos.LockInEndTimestamp {
			return domain.ErrLockInAlreadyEnded
		}

		penalty = pos.DepositAmount / 2
		kept, err := subU64(pos.DepositAmount, penalty)
		if err != nil {
			return err
		}
		returned, err = addU64(kept, pos.AccruedYield)
		if err != nil {
			return err
		}

		if penalty > 0 {
			if err := l.Balances().Transfer(ctx, domain.VaultAccount, domain.TreasuryAccount, penalty); err != nil {
				return err
			}
			if err := l.Treasury().Add(ctx, penalty); err != nil {
				return err
			}
		}
		if returned > 0 {
			if err := l.Balances().Transfer(ctx, domain.VaultAccount, domain.UserAccount(user), returned); err != nil {
				return err
			}
		}

		// Reclaim the market for the cycle the course was abandoned in. Its
		// escrow pool is left stranded; the record itself is erased.
		marketID := domain.MarketKey(user, pos.CurrentTaskDeadline(s.params.TaskCycleSeconds))
		if m, mErr := l.Markets().Get(ctx, marketID); mErr == nil && m.Subject == user {
			if err := l.Markets().Delete(ctx, marketID); err != nil {
				return err
			}
			closedMarket = marketID
		}

		pos.DepositAmount = 0
		pos.AccruedYield = 0
		pos.LockInEndTimestamp = 0
		return l.Positions().Update(ctx, pos)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("position_service: early withdraw for %q: %w", user, err)
	}

	fields := map[string]any{
		"owner":    user,
		"penalty":  penalty,
		"returned": returned,
	}
	if closedMarket != "" {
		fields["closed_market_id"] = closedMarket
	}
	s.pub.emit(ctx, domain.ChannelPositions, "early_withdrawn", fields)

	s.logger.InfoContext(ctx, "position_service: early withdrawal complete",
		slog.String("owner", user),
		slog.Uint64("penalty", penalty),
		slog.Uint64("returned", returned),
		slog.String("closed_market_id", closedMarket),
	)
	return penalty, returned, nil
}

// GetPosition returns the position for user.
func (s *PositionService) GetPosition(ctx context.Context, user string) (domain.UserPosition, error) {
	var pos domain.UserPosition
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		pos, err = l.Positions().Get(ctx, domain.PositionKey(user))
		return err
	})
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("position_service: get %q: %w", user, err)
	}
	return pos, nil
}
