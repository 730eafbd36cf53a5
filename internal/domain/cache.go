package domain

import "context"

// MarketCache is a read-side cache for market snapshots. Implementations
// return ErrNotFound on a miss; callers fall through to the gateway.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetBySubject(ctx context.Context, subject string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}
