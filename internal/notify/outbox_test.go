package notify_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/notify"
)

type memWriter struct {
	events []*db.PendingNotificationEvent
}

func (m *memWriter) Enqueue(ctx context.Context, events ...*db.PendingNotificationEvent) error {
	for _, e := range events {
		e.ID = uint64(len(m.events) + 1)
		m.events = append(m.events, e)
	}
	return nil
}

func TestOutboxEnqueue(t *testing.T) {
	w := &memWriter{}
	o := notify.NewOutbox(w, clock.NewFake(start))

	id, err := o.Enqueue(context.Background(), 7, notify.TypeMessage, "alice", "hi", map[string]any{"thread_id": 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	require.Len(t, w.events, 1)
	e := w.events[0]
	assert.Equal(t, uint64(7), e.RecipientUserID)
	assert.Equal(t, "alice", e.SourceActorName)
	assert.True(t, e.CreatedAt.Equal(start))
	assert.False(t, e.IsSent)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	assert.Equal(t, "hi", payload["preview"])
	assert.EqualValues(t, 3, payload["thread_id"])
}

func TestOutboxEnqueueRequiresFields(t *testing.T) {
	o := notify.NewOutbox(&memWriter{}, clock.NewFake(start))
	_, err := o.Enqueue(context.Background(), 0, notify.TypeMessage, "alice", "", nil)
	assert.Error(t, err)
	_, err = o.Enqueue(context.Background(), 1, notify.TypeMessage, "", "", nil)
	assert.Error(t, err)
}
