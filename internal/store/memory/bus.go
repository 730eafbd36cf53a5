package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/streakvault/streakvault/internal/domain"
)

// SignalBus is an in-process domain.SignalBus for deployments that run
// without Redis. Pub/sub fan-out is per-channel with a bounded buffer per
// subscriber; slow subscribers drop messages rather than block publishers.
type SignalBus struct {
	mu      sync.RWMutex
	subs    map[string][]chan []byte
	streams map[string][][]byte
}

// NewSignalBus creates an empty in-process bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][][]byte),
	}
}

// Publish delivers payload to every subscriber of channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
			// Drop for slow consumers; delivery is best-effort.
		}
	}
	return nil
}

// Subscribe registers a subscriber for channel. The returned channel closes
// when ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// StreamAppend appends payload to the named stream.
func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

// StreamRead returns up to count entries after lastID. IDs are the decimal
// offsets of entries in the stream; "0" reads from the beginning.
func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := 0
	if lastID != "" && lastID != "0" && lastID != "0-0" {
		n, err := strconv.Atoi(lastID)
		if err == nil {
			start = n + 1
		}
	}

	entries := b.streams[stream]
	if start >= len(entries) {
		return nil, nil
	}

	var out []domain.StreamMessage
	for i := start; i < len(entries) && len(out) < count; i++ {
		out = append(out, domain.StreamMessage{
			ID:      strconv.Itoa(i),
			Payload: entries[i],
		})
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
