package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streakvault/streakvault/internal/domain"
)

// marketStore implements domain.MarketStore inside a transaction.
type marketStore struct {
	tx pgx.Tx
}

const marketSelectCols = `id, creator, subject, subject_position_key,
	total_long, total_short, created_ts, betting_ends_ts, task_deadline_ts,
	resolution_ts, status, fee_bps, fee_claimed`

func scanMarketRow(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var long, short int64
	var status string

	err := row.Scan(
		&m.ID, &m.Creator, &m.Subject, &m.SubjectPositionKey,
		&long, &short,
		&m.CreatedAt, &m.BettingEndsAt, &m.TaskDeadline, &m.ResolutionAt,
		&status, &m.PlatformFeeBps, &m.FeeClaimed,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.TotalLongAmount = uint64(long)
	m.TotalShortAmount = uint64(short)
	m.Status = domain.MarketStatus(status)
	return m, nil
}

func scanMarketRows(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarketRow(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func (s *marketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, creator, subject, subject_position_key,
			total_long, total_short, created_ts, betting_ends_ts,
			task_deadline_ts, resolution_ts, status, fee_bps, fee_claimed,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())`

	_, err := s.tx.Exec(ctx, query,
		m.ID, m.Creator, m.Subject, m.SubjectPositionKey,
		int64(m.TotalLongAmount), int64(m.TotalShortAmount),
		m.CreatedAt, m.BettingEndsAt, m.TaskDeadline, m.ResolutionAt,
		string(m.Status), m.PlatformFeeBps, m.FeeClaimed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

func (s *marketStore) Get(ctx context.Context, id string) (domain.Market, error) {
	row := s.tx.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1 FOR UPDATE`, id)

	m, err := scanMarketRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

func (s *marketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			total_long  = $2,
			total_short = $3,
			status      = $4,
			fee_claimed = $5,
			updated_at  = NOW()
		WHERE id = $1`

	tag, err := s.tx.Exec(ctx, query,
		m.ID,
		int64(m.TotalLongAmount), int64(m.TotalShortAmount),
		string(m.Status), m.FeeClaimed,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *marketStore) Delete(ctx context.Context, id string) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM markets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *marketStore) ListBySubject(ctx context.Context, subject string) ([]domain.Market, error) {
	rows, err := s.tx.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets
		 WHERE subject = $1
		 ORDER BY task_deadline_ts`, subject)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by subject: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan markets by subject: %w", err)
	}
	return markets, nil
}

func (s *marketStore) ListDue(ctx context.Context, now int64) ([]domain.Market, error) {
	rows, err := s.tx.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets
		 WHERE status IN ('open', 'awaiting_resolution') AND betting_ends_ts <= $1
		 ORDER BY betting_ends_ts`, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan due markets: %w", err)
	}
	return markets, nil
}
