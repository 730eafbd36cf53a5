package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streakvault/streakvault/internal/domain"
)

// Alerter bridges the signal bus to the notifier: it subscribes to the fact
// channels and turns settlement-relevant facts into operator notifications.
type Alerter struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewAlerter creates an Alerter reading from the given bus.
func NewAlerter(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Alerter {
	return &Alerter{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "alerter")),
	}
}

// Run consumes fact channels until the context is cancelled. Delivery is
// best-effort; a failed send is logged and the loop continues.
func (a *Alerter) Run(ctx context.Context) error {
	channels := []string{
		domain.ChannelMarkets,
		domain.ChannelPositions,
	}

	for _, ch := range channels {
		msgs, err := a.bus.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", ch, err)
		}
		go a.consume(ctx, ch, msgs)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (a *Alerter) consume(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			a.handle(ctx, channel, payload)
		}
	}
}

func (a *Alerter) handle(ctx context.Context, channel string, payload []byte) {
	var fact map[string]any
	if err := json.Unmarshal(payload, &fact); err != nil {
		a.logger.WarnContext(ctx, "undecodable fact",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	event, _ := fact["event"].(string)
	title, message, ok := a.render(event, fact)
	if !ok {
		return
	}

	if err := a.notifier.Notify(ctx, event, title, message); err != nil {
		a.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// render maps a fact to a notification. Facts that operators do not care
// about return ok=false and are dropped silently.
func (a *Alerter) render(event string, fact map[string]any) (title, message string, ok bool) {
	switch event {
	case "market_resolved":
		return "Market resolved",
			fmt.Sprintf("market %v resolved as %v (pool long=%v short=%v)",
				fact["market_id"], fact["status"],
				fact["total_long"], fact["total_short"]),
			true
	case "market_closed":
		return "Market closed",
			fmt.Sprintf("market %v closed, dust %v swept to treasury",
				fact["market_id"], fact["dust_swept"]),
			true
	case "early_withdrawn":
		return "Early withdrawal",
			fmt.Sprintf("user %v withdrew early, penalty %v, returned %v",
				fact["owner"], fact["penalty"], fact["returned"]),
			true
	default:
		return "", "", false
	}
}
