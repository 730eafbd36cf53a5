package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/streakvault/streakvault/internal/domain"
)

// Release must compare the fencing token before deleting, otherwise a holder
// whose TTL expired could release the lock a successor now owns.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

// LockManager hands out TTL-bounded distributed locks. The resolver takes one
// per market so concurrent daemons never double-settle.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
}

// NewLockManager returns a lock manager sharing the client's pool.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.rdb,
		release: redis.NewScript(releaseScript),
	}
}

var _ domain.LockManager = (*LockManager)(nil)

// Acquire takes the lock named key for at most ttl. The returned function
// releases it and is idempotent. A lock someone else holds yields
// domain.ErrLockHeld.
func (m *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	name := "lock:" + key
	token := uuid.NewString()

	ok, err := m.rdb.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context is often already cancelled by the time
			// the deferred release runs; use a fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = m.release.Run(rctx, m.rdb, []string{name}, token).Err()
		})
	}, nil
}
