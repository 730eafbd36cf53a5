package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streakvault/streakvault/internal/domain"
)

const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache using Redis hashes with JSON-
// serialized Market data and a subject-to-market index pointing at the
// subject's most recently cached market.
//
// Key schema:
//
//	market:{id}              - hash with field "data" containing JSON
//	market:subject:{subject} - string value of the market ID
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache returns a cache sharing the client's pool.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.rdb}
}

func marketKey(id string) string            { return "market:" + id }
func marketSubjectKey(subject string) string { return "market:subject:" + subject }

// Set stores a Market in the cache with a 5-minute TTL and points the
// subject index at it.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}

	key := marketKey(market.ID)

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, marketTTL)

	if market.Subject != "" {
		pipe.Set(ctx, marketSubjectKey(market.Subject), market.ID, marketTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get retrieves a Market by its ID from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return market, nil
}

// GetBySubject looks up the most recently cached Market for a subject.
// It returns domain.ErrNotFound if the index or market does not exist.
func (mc *MarketCache) GetBySubject(ctx context.Context, subject string) (domain.Market, error) {
	marketID, err := mc.rdb.Get(ctx, marketSubjectKey(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market by subject %s: %w", subject, err)
	}

	return mc.Get(ctx, marketID)
}

// Invalidate removes a Market and its subject index entry from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	// Read the market first so the subject index can be cleaned up too.
	market, err := mc.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(id))

	if err == nil && market.Subject != "" {
		pipe.Del(ctx, marketSubjectKey(market.Subject))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
