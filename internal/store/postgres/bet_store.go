package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streakvault/streakvault/internal/domain"
)

// betStore implements domain.BetStore inside a transaction.
type betStore struct {
	tx pgx.Tx
}

const betSelectCols = `key, market_id, bettor, amount, is_long, claimed, placed_ts`

func scanBetRow(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var amount int64

	err := row.Scan(&b.Key, &b.MarketID, &b.Bettor, &amount, &b.IsLong, &b.Claimed, &b.PlacedAt)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Amount = uint64(amount)
	return b, nil
}

func (s *betStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (key, market_id, bettor, amount, is_long, claimed, placed_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.tx.Exec(ctx, query,
		b.Key, b.MarketID, b.Bettor, int64(b.Amount), b.IsLong, b.Claimed, b.PlacedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create bet %s: %w", b.Key, err)
	}
	return nil
}

func (s *betStore) Get(ctx context.Context, key string) (domain.Bet, error) {
	row := s.tx.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE key = $1 FOR UPDATE`, key)

	b, err := scanBetRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", key, err)
	}
	return b, nil
}

func (s *betStore) Update(ctx context.Context, b domain.Bet) error {
	const query = `UPDATE bets SET claimed = $2 WHERE key = $1`

	tag, err := s.tx.Exec(ctx, query, b.Key, b.Claimed)
	if err != nil {
		return fmt.Errorf("postgres: update bet %s: %w", b.Key, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *betStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	rows, err := s.tx.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE market_id = $1 ORDER BY bettor`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for %s: %w", marketID, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBetRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bets for %s: %w", marketID, err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func (s *betStore) DeleteByMarket(ctx context.Context, marketID string) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM bets WHERE market_id = $1`, marketID); err != nil {
		return fmt.Errorf("postgres: delete bets for %s: %w", marketID, err)
	}
	return nil
}
