package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streakvault/streakvault/internal/domain"
)

// MarketEngine owns the market status state machine: creation, the two-phase
// resolution, fee extraction, and storage reclaim. Transitions only ever move
// forward; a terminal status is set once and never revisited.
type MarketEngine struct {
	gateway domain.Gateway
	params  Params
	pub     publisher
	logger  *slog.Logger
}

// NewMarketEngine creates a MarketEngine.
func NewMarketEngine(
	gateway domain.Gateway,
	params Params,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *MarketEngine {
	return &MarketEngine{
		gateway: gateway,
		params:  params,
		pub:     publisher{bus: bus, audit: audit, logger: logger},
		logger:  logger,
	}
}

// marketFactFields is the standard fact payload for market transitions.
func marketFactFields(m domain.Market) map[string]any {
	return map[string]any{
		"market_id":   m.ID,
		"subject":     m.Subject,
		"status":      string(m.Status),
		"total_long":  m.TotalLongAmount,
		"total_short": m.TotalShortAmount,
	}
}

// createInLedger builds and persists a market inside an already-open atomic
// scope. It is shared by CreateMarket and the implicit creation that
// StartCourse performs.
func (e *MarketEngine) createInLedger(
	ctx context.Context,
	l domain.Ledger,
	creator string,
	pos domain.UserPosition,
	bettingWindowSeconds int64,
	now int64,
) (domain.Market, error) {
	if !pos.Started() || pos.DepositTimestamp == 0 {
		return domain.Market{}, domain.ErrSubjectNotStarted
	}

	deadline, err := addI64(pos.LastTaskTimestamp, e.params.TaskCycleSeconds)
	if err != nil {
		return domain.Market{}, err
	}
	bettingEnds, err := addI64(now, bettingWindowSeconds)
	if err != nil {
		return domain.Market{}, err
	}
	if bettingEnds >= deadline {
		return domain.Market{}, domain.ErrBettingWindowTooLong
	}
	resolutionAt, err := addI64(deadline, e.params.GracePeriodSeconds)
	if err != nil {
		return domain.Market{}, err
	}

	m := domain.Market{
		ID:                 domain.MarketKey(pos.Owner, deadline),
		Creator:            creator,
		Subject:            pos.Owner,
		SubjectPositionKey: pos.Key,
		CreatedAt:          now,
		BettingEndsAt:      bettingEnds,
		TaskDeadline:       deadline,
		ResolutionAt:       resolutionAt,
		Status:             domain.MarketStatusOpen,
		PlatformFeeBps:     e.params.DefaultFeeBps,
	}

	if err := l.Markets().Create(ctx, m); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// CreateMarket opens a market on subject's current task cycle. The subject
// must have started a course, and the betting window must close strictly
// before the task deadline.
func (e *MarketEngine) CreateMarket(ctx context.Context, creator, subject string, bettingWindowSeconds int64) (domain.Market, error) {
	var market domain.Market
	err := e.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		pos, err := l.Positions().Get(ctx, domain.PositionKey(subject))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrSubjectNotStarted
			}
			return err
		}

		market, err = e.createInLedger(ctx, l, creator, pos, bettingWindowSeconds, l.Now())
		return err
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_engine: create for subject %q: %w", subject, err)
	}

	e.pub.emit(ctx, domain.ChannelMarkets, "market_created", marketFactFields(market))

	e.logger.InfoContext(ctx, "market_engine: market created",
		slog.String("market_id", market.ID),
		slog.String("creator", creator),
		slog.String("subject", subject),
		slog.Int64("betting_ends", market.BettingEndsAt),
		slog.Int64("task_deadline", market.TaskDeadline),
	)
	return market, nil
}

// TriggerResolution advances the market state machine. It is two-phase: the
// first eligible call moves an Open market to AwaitingResolution once betting
// closes; a later call, after the grace period, decides the outcome from the
// subject's task evidence and extracts the platform fee. The resolving
// transition is terminal — repeat calls fail with ErrAlreadyResolved.
func (e *MarketEngine) TriggerResolution(ctx context.Context, marketID string) (domain.Market, error) {
	var (
		market   domain.Market
		feeTaken uint64
	)

	err := e.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		market, err = l.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}

		pos, err := l.Positions().Get(ctx, market.SubjectPositionKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUserStateMismatch
			}
			return err
		}
		if pos.Key != domain.PositionKey(market.Subject) {
			return domain.ErrUserStateMismatch
		}

		now := l.Now()

		if market.Status == domain.MarketStatusOpen {
			if now < market.BettingEndsAt {
				return domain.ErrNotReadyForResolution
			}
			market.Status = domain.MarketStatusAwaitingResolution
			return l.Markets().Update(ctx, market)
		}

		if market.Status != domain.MarketStatusAwaitingResolution {
			return domain.ErrAlreadyResolved
		}
		if now < market.ResolutionAt {
			return domain.ErrGracePeriodNotOver
		}

		// The subject wins the longs' case iff they recorded a completion
		// inside the cycle ending at the deadline: (deadline-cycle, deadline].
		windowStart := market.TaskDeadline - e.params.TaskCycleSeconds
		longsWin := pos.LastTaskTimestamp > windowStart && pos.LastTaskTimestamp <= market.TaskDeadline
		if longsWin {
			market.Status = domain.MarketStatusResolvedLongsWin
		} else {
			market.Status = domain.MarketStatusResolvedShortsWin
		}

		if !market.FeeClaimed {
			total, err := market.TotalPool()
			if err != nil {
				return err
			}
			feeTaken, err = mulDivU64(total, uint64(market.PlatformFeeBps), feeBpsDenominator)
			if err != nil {
				return err
			}
			if feeTaken > 0 {
				if err := l.Balances().Transfer(ctx, domain.EscrowAccount(market.ID), domain.TreasuryAccount, feeTaken); err != nil {
					return err
				}
				if err := l.Treasury().Add(ctx, feeTaken); err != nil {
					return err
				}
			}
			market.FeeClaimed = true
		}

		return l.Markets().Update(ctx, market)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_engine: trigger resolution %q: %w", marketID, err)
	}

	switch market.Status {
	case domain.MarketStatusAwaitingResolution:
		e.pub.emit(ctx, domain.ChannelMarkets, "market_awaiting_resolution", marketFactFields(market))
	default:
		fields := marketFactFields(market)
		fields["fee_taken"] = feeTaken
		e.pub.emit(ctx, domain.ChannelMarkets, "market_resolved", fields)
	}

	e.logger.InfoContext(ctx, "market_engine: resolution advanced",
		slog.String("market_id", market.ID),
		slog.String("status", string(market.Status)),
		slog.Uint64("fee_taken", feeTaken),
	)
	return market, nil
}

// CloseMarket reclaims a fully settled market: terminal status, fee claimed,
// and every bet claimed. Residual escrow dust is swept to the treasury before
// the bet and market records are deleted. Only the creator or the subject may
// close a market.
func (e *MarketEngine) CloseMarket(ctx context.Context, caller, marketID string) error {
	var swept uint64
	err := e.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		market, err := l.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}
		if caller != market.Creator && caller != market.Subject {
			return domain.ErrNotOwner
		}
		if !market.Status.Terminal() || !market.FeeClaimed {
			return domain.ErrMarketNotSettled
		}

		bets, err := l.Bets().ListByMarket(ctx, marketID)
		if err != nil {
			return err
		}
		for _, b := range bets {
			if !b.Claimed {
				return domain.ErrMarketNotSettled
			}
		}

		escrow := domain.EscrowAccount(marketID)
		swept, err = l.Balances().Balance(ctx, escrow)
		if err != nil {
			return err
		}
		if swept > 0 {
			if err := l.Balances().Transfer(ctx, escrow, domain.TreasuryAccount, swept); err != nil {
				return err
			}
			if err := l.Treasury().Add(ctx, swept); err != nil {
				return err
			}
		}

		if err := l.Bets().DeleteByMarket(ctx, marketID); err != nil {
			return err
		}
		return l.Markets().Delete(ctx, marketID)
	})
	if err != nil {
		return fmt.Errorf("market_engine: close %q: %w", marketID, err)
	}

	e.pub.emit(ctx, domain.ChannelMarkets, "market_closed", map[string]any{
		"market_id":  marketID,
		"dust_swept": swept,
	})
	return nil
}

// GetMarket returns a market by ID.
func (e *MarketEngine) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	var market domain.Market
	err := e.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		market, err = l.Markets().Get(ctx, marketID)
		return err
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_engine: get %q: %w", marketID, err)
	}
	return market, nil
}

// ListBySubject returns all markets on the given subject.
func (e *MarketEngine) ListBySubject(ctx context.Context, subject string) ([]domain.Market, error) {
	var markets []domain.Market
	err := e.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		markets, err = l.Markets().ListBySubject(ctx, subject)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("market_engine: list by subject %q: %w", subject, err)
	}
	return markets, nil
}

// ListDue returns non-terminal markets whose betting window has closed by
// now, for the resolution daemon.
func (e *MarketEngine) ListDue(ctx context.Context, now int64) ([]domain.Market, error) {
	var markets []domain.Market
	err := e.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		markets, err = l.Markets().ListDue(ctx, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("market_engine: list due: %w", err)
	}
	return markets, nil
}
