package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streakvault/streakvault/internal/domain"
)

// BetService manages the bet ledger and the escrow pool: stake placement,
// proportional payout claims, and the bookkeeping around both.
type BetService struct {
	gateway domain.Gateway
	params  Params
	pub     publisher
	logger  *slog.Logger
}

// NewBetService creates a BetService.
func NewBetService(
	gateway domain.Gateway,
	params Params,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		gateway: gateway,
		params:  params,
		pub:     publisher{bus: bus, audit: audit, logger: logger},
		logger:  logger,
	}
}

// PlaceBet stakes amount on one side of an open market. The stake moves into
// the market's escrow pool and the per-side total grows by the same amount;
// the uniqueness of the bet key is the double-bet guard.
func (s *BetService) PlaceBet(ctx context.Context, bettor, marketID string, amount uint64, isLong bool) (domain.Bet, error) {
	var (
		bet    domain.Bet
		market domain.Market
	)

	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		market, err = l.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}
		if market.Status != domain.MarketStatusOpen {
			return domain.ErrNotOpenForBets
		}
		if l.Now() >= market.BettingEndsAt {
			return domain.ErrWindowClosed
		}
		if amount == 0 {
			return domain.ErrZeroAmount
		}
		if bettor == market.Subject {
			return domain.ErrCannotBetOnSelf
		}

		if err := l.Balances().Transfer(ctx, domain.UserAccount(bettor), domain.EscrowAccount(marketID), amount); err != nil {
			return err
		}

		if isLong {
			market.TotalLongAmount, err = addU64(market.TotalLongAmount, amount)
		} else {
			market.TotalShortAmount, err = addU64(market.TotalShortAmount, amount)
		}
		if err != nil {
			return err
		}
		if err := l.Markets().Update(ctx, market); err != nil {
			return err
		}

		bet = domain.Bet{
			Key:      domain.BetKey(marketID, bettor),
			MarketID: marketID,
			Bettor:   bettor,
			Amount:   amount,
			IsLong:   isLong,
			PlacedAt: l.Now(),
		}
		return l.Bets().Create(ctx, bet)
	})
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: place bet on %q: %w", marketID, err)
	}

	fields := marketFactFields(market)
	fields["bettor"] = bettor
	fields["amount"] = amount
	fields["is_long"] = isLong
	s.pub.emit(ctx, domain.ChannelBets, "bet_placed", fields)

	s.logger.InfoContext(ctx, "bet_service: bet placed",
		slog.String("market_id", marketID),
		slog.String("bettor", bettor),
		slog.Uint64("amount", amount),
		slog.Bool("is_long", isLong),
	)
	return bet, nil
}

// ClaimWinnings settles a bettor's entitlement on a resolved market. Winners
// split the net pool pro-rata to stake size with independent floor division;
// losers get a recorded zero. Claimed flips exactly once in either case, so a
// second call fails with ErrAlreadyClaimed.
func (s *BetService) ClaimWinnings(ctx context.Context, caller, marketID, bettor string) (uint64, error) {
	var payout uint64
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		bet, err := l.Bets().Get(ctx, domain.BetKey(marketID, bettor))
		if err != nil {
			return err
		}
		if bet.Bettor != caller {
			return domain.ErrNotOwner
		}
		if bet.Claimed {
			return domain.ErrAlreadyClaimed
		}

		market, err := l.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}
		if !market.FeeClaimed {
			return domain.ErrFeeNotClaimed
		}

		// Recompute the fee with the same formula resolution used, rather
		// than storing a second field.
		total, err := market.TotalPool()
		if err != nil {
			return err
		}
		fee, err := mulDivU64(total, uint64(market.PlatformFeeBps), feeBpsDenominator)
		if err != nil {
			return err
		}
		netPool, err := subU64(total, fee)
		if err != nil {
			return err
		}

		winningIsLong, resolved := market.WinningSideIsLong()
		if resolved && bet.IsLong == winningIsLong {
			winningTotal := market.TotalShortAmount
			if winningIsLong {
				winningTotal = market.TotalLongAmount
			}
			if winningTotal > 0 {
				payout, err = mulDivU64(bet.Amount, netPool, winningTotal)
				if err != nil {
					return err
				}
			}
		}

		if payout > 0 {
			if err := l.Balances().Transfer(ctx, domain.EscrowAccount(marketID), domain.UserAccount(bettor), payout); err != nil {
				return err
			}
		}

		bet.Claimed = true
		return l.Bets().Update(ctx, bet)
	})
	if err != nil {
		return 0, fmt.Errorf("bet_service: claim on %q for %q: %w", marketID, bettor, err)
	}

	// A zero payout is a valid, recorded outcome.
	s.pub.emit(ctx, domain.ChannelBets, "winnings_claimed", map[string]any{
		"market_id": marketID,
		"bettor":    bettor,
		"payout":    payout,
	})

	s.logger.InfoContext(ctx, "bet_service: winnings claimed",
		slog.String("market_id", marketID),
		slog.String("bettor", bettor),
		slog.Uint64("payout", payout),
	)
	return payout, nil
}

// GetBet returns the bet a bettor holds on a market.
func (s *BetService) GetBet(ctx context.Context, marketID, bettor string) (domain.Bet, error) {
	var bet domain.Bet
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		bet, err = l.Bets().Get(ctx, domain.BetKey(marketID, bettor))
		return err
	})
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: get bet on %q for %q: %w", marketID, bettor, err)
	}
	return bet, nil
}

// ListByMarket returns every bet on a market.
func (s *BetService) ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		bets, err = l.Bets().ListByMarket(ctx, marketID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bet_service: list bets on %q: %w", marketID, err)
	}
	return bets, nil
}

// TreasuryTotal returns the running total of fees, penalties, and swept dust
// collected by the platform.
func (s *BetService) TreasuryTotal(ctx context.Context) (uint64, error) {
	var total uint64
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		total, err = l.Treasury().Total(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("bet_service: treasury total: %w", err)
	}
	return total, nil
}
