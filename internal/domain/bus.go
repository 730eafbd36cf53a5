package domain

import (
	"context"
	"time"
)

// Fact channels published by the engine. Observers (WebSocket hub, archiver,
// notifier) subscribe to these; delivery is best-effort and nothing in the
// core depends on it.
const (
	ChannelPositions = "positions"
	ChannelMarkets   = "markets"
	ChannelBets      = "bets"
)

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out and durable streams for fact emission.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking, used to keep multiple resolver
// replicas from triggering the same market concurrently.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
