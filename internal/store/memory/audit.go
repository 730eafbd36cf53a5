package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streakvault/streakvault/internal/domain"
)

// AuditStore is an in-process append-only audit log.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

// NewAuditStore creates an empty audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Log appends an audit entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        uuid.New().String(),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().Unix(),
	})
	return nil
}

// List returns the most recent entries, newest first.
func (s *AuditStore) List(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]domain.AuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
