package notify

import (
	"context"
	"fmt"

	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/db"
)

// EventWriter persists new pending events.
type EventWriter interface {
	Enqueue(ctx context.Context, events ...*db.PendingNotificationEvent) error
}

// Outbox is the write side used by collaborators (messaging, profile
// updates) that produce notifications for the batcher.
type Outbox struct {
	events EventWriter
	clock  clock.Clock
}

func NewOutbox(events EventWriter, clk clock.Clock) *Outbox {
	return &Outbox{events: events, clock: clk}
}

// Enqueue writes one event and returns its id.
func (o *Outbox) Enqueue(ctx context.Context, recipient uint64, typ, source, preview string, extra map[string]any) (uint64, error) {
	if recipient == 0 || typ == "" || source == "" {
		return 0, fmt.Errorf("enqueue notification: recipient, type and source are required")
	}
	e, err := NewEvent(recipient, typ, source, preview, extra, o.clock.Now())
	if err != nil {
		return 0, err
	}
	if err := o.events.Enqueue(ctx, &e); err != nil {
		return 0, fmt.Errorf("enqueue notification: %w", err)
	}
	return e.ID, nil
}
