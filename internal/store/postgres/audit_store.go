package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streakvault/streakvault/internal/domain"
)

// AuditStore persists the append-only audit log. It writes through the pool
// directly: audit entries are best-effort and deliberately outside the
// operation's atomic scope.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given client.
func NewAuditStore(c *Client) *AuditStore {
	return &AuditStore{pool: c.Pool()}
}

// Log inserts one audit row.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, event, detail) VALUES ($1, $2, $3)`,
		uuid.New().String(), event, detailJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: audit log %s: %w", event, err)
	}
	return nil
}

// List returns the most recent audit entries, newest first.
func (s *AuditStore) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, event, detail, created_at FROM audit_log
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit log: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e          domain.AuditEntry
			detailJSON []byte
			createdAt  time.Time
		)
		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit log: %w", err)
		}
		if len(detailJSON) > 0 {
			_ = json.Unmarshal(detailJSON, &e.Detail)
		}
		e.CreatedAt = createdAt.Unix()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
