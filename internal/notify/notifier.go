// Package notify delivers operator notifications. Settlement facts come off
// the signal bus, pass an event-type allowlist, and fan out to every
// configured channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Notifier fans a notification out to all senders. When an allowlist is
// configured, Notify drops events outside it; NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewNotifier builds a Notifier for the given senders. An empty events list
// allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	var allowed map[string]struct{}
	if len(events) > 0 {
		allowed = make(map[string]struct{}, len(events))
		for _, e := range events {
			allowed[strings.TrimSpace(e)] = struct{}{}
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers to all senders if the event type passes the allowlist.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if n.allowed != nil {
		if _, ok := n.allowed[event]; !ok {
			n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
			return nil
		}
	}
	return n.deliver(ctx, title, message)
}

// NotifyAll delivers to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.deliver(ctx, title, message)
}

// deliver tries every sender even when earlier ones fail; one unreachable
// channel must not silence the rest. Failures come back as a joined error.
func (n *Notifier) deliver(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		err := s.Send(ctx, title, message)
		if err == nil {
			n.logger.DebugContext(ctx, "notification sent", slog.String("sender", s.Name()))
			continue
		}
		n.logger.ErrorContext(ctx, "sender failed",
			slog.String("sender", s.Name()),
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return errors.Join(errs...)
}
