package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streakvault/streakvault/internal/domain"
)

// balanceStore implements domain.Balances inside a transaction. The CHECK
// constraint on balances.amount is a second line of defence; the guarded
// UPDATE below is what actually surfaces ErrInsufficientFunds.
type balanceStore struct {
	tx pgx.Tx
}

func (s *balanceStore) Transfer(ctx context.Context, from, to domain.Account, amount uint64) error {
	if from == to || amount == 0 {
		return nil
	}

	tag, err := s.tx.Exec(ctx,
		`UPDATE balances SET amount = amount - $2 WHERE account = $1 AND amount >= $2`,
		string(from), int64(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	if err := s.credit(ctx, to, amount); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", to, err)
	}
	return nil
}

func (s *balanceStore) Balance(ctx context.Context, account domain.Account) (uint64, error) {
	var amount int64
	err := s.tx.QueryRow(ctx,
		`SELECT amount FROM balances WHERE account = $1`, string(account),
	).Scan(&amount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: balance %s: %w", account, err)
	}
	return uint64(amount), nil
}

func (s *balanceStore) Credit(ctx context.Context, account domain.Account, amount uint64) error {
	if err := s.credit(ctx, account, amount); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account, err)
	}
	return nil
}

func (s *balanceStore) credit(ctx context.Context, account domain.Account, amount uint64) error {
	_, err := s.tx.Exec(ctx,
		`INSERT INTO balances (account, amount) VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`,
		string(account), int64(amount),
	)
	return err
}

// treasuryStore implements domain.TreasuryStore inside a transaction.
type treasuryStore struct {
	tx pgx.Tx
}

func (s *treasuryStore) Add(ctx context.Context, amount uint64) error {
	_, err := s.tx.Exec(ctx,
		`UPDATE treasury SET fees_collected = fees_collected + $1 WHERE id = 1`,
		int64(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: treasury add: %w", err)
	}
	return nil
}

func (s *treasuryStore) Total(ctx context.Context) (uint64, error) {
	var total int64
	err := s.tx.QueryRow(ctx, `SELECT fees_collected FROM treasury WHERE id = 1`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: treasury total: %w", err)
	}
	return uint64(total), nil
}
