package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/streakvault/streakvault/internal/domain"
)

// Fact history kept per stream, trimmed approximately by XADD MAXLEN.
const factStreamCap int64 = 10_000

// subscribeBuf bounds the per-subscriber delivery channel. Facts are
// fire-and-forget, so a stalled consumer loses messages rather than
// backing up the pump.
const subscribeBuf = 128

// SignalBus distributes settlement facts over Redis: Pub/Sub for live
// subscribers (WS hub, alerter) and streams for consumers that need to
// resume from a known position.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus returns a bus sharing the client's connection pool.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.rdb}
}

var _ domain.SignalBus = (*SignalBus)(nil)

// Publish fans a payload out to every live subscriber of channel.
func (b *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription on channel and returns the delivery channel.
// Glob characters in the name switch to pattern subscription. Cancelling the
// context tears the subscription down and closes the returned channel.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var sub *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		sub = b.rdb.PSubscribe(ctx, channel)
	} else {
		sub = b.rdb.Subscribe(ctx, channel)
	}

	// Wait for the server-side confirmation so a broken subscription
	// surfaces here instead of as silence later.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuf)
	go b.pump(ctx, sub, out)
	return out, nil
}

func (b *SignalBus) pump(ctx context.Context, sub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer sub.Close()

	in := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// StreamAppend records a payload on a durable stream, trimming history to
// roughly factStreamCap entries.
func (b *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: factStreamCap,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries recorded after lastID. "0" reads
// from the start, "$" only what arrives next. No pending entries is not an
// error; the result is simply empty.
func (b *SignalBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	res, err := b.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var out []domain.StreamMessage
	for _, s := range res {
		for _, m := range s.Messages {
			if data, ok := streamPayload(m); ok {
				out = append(out, domain.StreamMessage{ID: m.ID, Payload: data})
			}
		}
	}
	return out, nil
}

// streamPayload extracts the payload field, tolerating entries written by
// other producers with a different shape.
func streamPayload(m redis.XMessage) ([]byte, bool) {
	switch v := m.Values["payload"].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
