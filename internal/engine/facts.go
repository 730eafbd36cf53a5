package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/streakvault/streakvault/internal/domain"
)

// factStream is the durable stream every fact is appended to, in addition to
// its pub/sub channel.
const factStream = "facts"

// publisher emits structured facts describing state transitions. Emission is
// fire-and-forget: failures are logged and never roll back the transition
// they describe.
type publisher struct {
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

// emit publishes a fact to the given channel and appends it to the durable
// fact stream, then writes a best-effort audit entry.
func (p publisher) emit(ctx context.Context, channel, event string, fields map[string]any) {
	payload := map[string]any{
		"fact_id": uuid.New().String(),
		"event":   event,
	}
	for k, v := range fields {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.WarnContext(ctx, "engine: marshal fact failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	if p.bus != nil {
		if pubErr := p.bus.Publish(ctx, channel, data); pubErr != nil {
			p.logger.WarnContext(ctx, "engine: publish fact failed",
				slog.String("event", event),
				slog.String("channel", channel),
				slog.String("error", pubErr.Error()),
			)
		}
		if strErr := p.bus.StreamAppend(ctx, factStream, data); strErr != nil {
			p.logger.WarnContext(ctx, "engine: append fact stream failed",
				slog.String("event", event),
				slog.String("error", strErr.Error()),
			)
		}
	}

	if p.audit != nil {
		if auditErr := p.audit.Log(ctx, event, fields); auditErr != nil {
			p.logger.WarnContext(ctx, "engine: audit log failed",
				slog.String("event", event),
				slog.String("error", auditErr.Error()),
			)
		}
	}
}
