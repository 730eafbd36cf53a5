package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streakvault/streakvault/internal/domain"
	"github.com/streakvault/streakvault/internal/store/memory"
)

type captureSender struct {
	mu     sync.Mutex
	name   string
	err    error
	titles []string
	bodies []string
}

func (c *captureSender) Send(_ context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, message)
	return nil
}

func (c *captureSender) Name() string { return c.name }

func (c *captureSender) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.titles...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &captureSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{"market_resolved"}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), "market_resolved", "t1", "m1"))
	require.NoError(t, n.Notify(context.Background(), "bet_placed", "t2", "m2"))

	assert.Equal(t, []string{"t1"}, s.sent())
}

func TestNotifierEmptyAllowlistPassesAll(t *testing.T) {
	s := &captureSender{name: "test"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Len(t, s.sent(), 1)
}

func TestNotifierPartialFailure(t *testing.T) {
	bad := &captureSender{name: "bad", err: errors.New("boom")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	// The failing sender does not block delivery to the healthy one.
	assert.Len(t, good.sent(), 1)
}

func TestAlerterForwardsSettlementFacts(t *testing.T) {
	bus := memory.NewSignalBus()
	s := &captureSender{name: "test"}
	a := NewAlerter(bus, NewNotifier([]Sender{s}, nil, discardLogger()), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = a.Run(ctx)
		close(done)
	}()
	// Give Run a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	fact, _ := json.Marshal(map[string]any{
		"event":       "market_resolved",
		"market_id":   "m1",
		"status":      "resolved_longs_win",
		"total_long":  100,
		"total_short": 300,
	})
	require.NoError(t, bus.Publish(ctx, domain.ChannelMarkets, fact))

	// Uninteresting facts are dropped without notifying.
	ignored, _ := json.Marshal(map[string]any{"event": "task_completed"})
	require.NoError(t, bus.Publish(ctx, domain.ChannelPositions, ignored))

	assert.Eventually(t, func() bool {
		return len(s.sent()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "Market resolved", s.sent()[0])

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("alerter did not stop on cancel")
	}
}

func TestAlerterIgnoresGarbagePayloads(t *testing.T) {
	bus := memory.NewSignalBus()
	s := &captureSender{name: "test"}
	a := NewAlerter(bus, NewNotifier([]Sender{s}, nil, discardLogger()), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, domain.ChannelMarkets, []byte("not json")))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.sent())
}
