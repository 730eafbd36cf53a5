package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streakvault/streakvault/internal/domain"
)

// AdminService exposes operator-only operations: funding logical accounts and
// inspecting balances. Core operations never mint; all spendable funds enter
// the system through CreditBalance.
type AdminService struct {
	gateway domain.Gateway
	pub     publisher
	logger  *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(gateway domain.Gateway, bus domain.SignalBus, audit domain.AuditStore, logger *slog.Logger) *AdminService {
	return &AdminService{
		gateway: gateway,
		pub:     publisher{bus: bus, audit: audit, logger: logger},
		logger:  logger.With(slog.String("component", "admin_service")),
	}
}

// CreditBalance adds spendable funds to a user's account.
func (s *AdminService) CreditBalance(ctx context.Context, user string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("admin_service: credit %q: %w", user, domain.ErrZeroAmount)
	}

	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		return l.Balances().Credit(ctx, domain.UserAccount(user), amount)
	})
	if err != nil {
		return fmt.Errorf("admin_service: credit %q: %w", user, err)
	}

	s.pub.emit(ctx, domain.ChannelPositions, "balance_credited", map[string]any{
		"owner":  user,
		"amount": amount,
	})

	s.logger.InfoContext(ctx, "admin_service: balance credited",
		slog.String("owner", user),
		slog.Uint64("amount", amount),
	)
	return nil
}

// Balance returns the spendable balance of a user's account.
func (s *AdminService) Balance(ctx context.Context, user string) (uint64, error) {
	var balance uint64
	err := s.gateway.Atomic(ctx, func(ctx context.Context, l domain.Ledger) error {
		var err error
		balance, err = l.Balances().Balance(ctx, domain.UserAccount(user))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("admin_service: balance %q: %w", user, err)
	}
	return balance, nil
}
