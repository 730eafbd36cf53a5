package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streakvault/streakvault/internal/domain"
)

// positionStore implements domain.PositionStore inside a transaction.
type positionStore struct {
	tx pgx.Tx
}

const positionSelectCols = `key, owner, deposit_amount, initial_deposit_amount,
	accrued_yield, current_streak, miss_count, deposit_ts, last_task_ts, lock_in_end_ts`

func scanPositionRow(row pgx.Row) (domain.UserPosition, error) {
	var p domain.UserPosition
	var deposit, initial, yield int64

	err := row.Scan(
		&p.Key, &p.Owner,
		&deposit, &initial, &yield,
		&p.CurrentStreak, &p.MissCount,
		&p.DepositTimestamp, &p.LastTaskTimestamp, &p.LockInEndTimestamp,
	)
	if err != nil {
		return domain.UserPosition{}, err
	}
	p.DepositAmount = uint64(deposit)
	p.InitialDepositAmount = uint64(initial)
	p.AccruedYield = uint64(yield)
	return p, nil
}

func (s *positionStore) Create(ctx context.Context, p domain.UserPosition) error {
	const query = `
		INSERT INTO positions (
			key, owner, deposit_amount, initial_deposit_amount, accrued_yield,
			current_streak, miss_count, deposit_ts, last_task_ts, lock_in_end_ts,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`

	_, err := s.tx.Exec(ctx, query,
		p.Key, p.Owner,
		int64(p.DepositAmount), int64(p.InitialDepositAmount), int64(p.AccruedYield),
		p.CurrentStreak, p.MissCount,
		p.DepositTimestamp, p.LastTaskTimestamp, p.LockInEndTimestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create position %s: %w", p.Key, err)
	}
	return nil
}

func (s *positionStore) Get(ctx context.Context, key string) (domain.UserPosition, error) {
	row := s.tx.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE key = $1 FOR UPDATE`, key)

	p, err := scanPositionRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.UserPosition{}, domain.ErrNotFound
		}
		return domain.UserPosition{}, fmt.Errorf("postgres: get position %s: %w", key, err)
	}
	return p, nil
}

func (s *positionStore) Update(ctx context.Context, p domain.UserPosition) error {
	const query = `
		UPDATE positions SET
			deposit_amount         = $2,
			initial_deposit_amount = $3,
			accrued_yield          = $4,
			current_streak         = $5,
			miss_count             = $6,
			deposit_ts             = $7,
			last_task_ts           = $8,
			lock_in_end_ts         = $9,
			updated_at             = NOW()
		WHERE key = $1`

	tag, err := s.tx.Exec(ctx, query,
		p.Key,
		int64(p.DepositAmount), int64(p.InitialDepositAmount), int64(p.AccruedYield),
		p.CurrentStreak, p.MissCount,
		p.DepositTimestamp, p.LastTaskTimestamp, p.LockInEndTimestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.Key, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
