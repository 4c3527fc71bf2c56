package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/db/dbtest"
	"github.com/oggyb/muzz-consent/internal/notify"
	"github.com/oggyb/muzz-consent/internal/repository"
)

func enqueue(t *testing.T, repo *repository.EventRepository, recipient uint64, typ, source string, at time.Time) *db.PendingNotificationEvent {
	t.Helper()
	e, err := notify.NewEvent(recipient, typ, source, "hi from "+source, nil, at)
	require.NoError(t, err)
	require.NoError(t, repo.Enqueue(context.Background(), &e))
	return &e
}

func TestPendingGroups(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEventRepository(dbtest.Open(t))

	e1 := enqueue(t, repo, 1, notify.TypeMessage, "alice", day)
	enqueue(t, repo, 1, notify.TypeMessage, "alice", day.Add(time.Minute))
	enqueue(t, repo, 1, notify.TypeMessage, "bob", day.Add(2*time.Minute))
	enqueue(t, repo, 2, notify.TypeMatch, "alice", day)                   // other type
	enqueue(t, repo, 3, notify.TypeMessage, "carol", day.Add(time.Hour)) // too fresh

	groups, err := repo.PendingGroups(ctx, notify.TypeMessage, day.Add(10*time.Minute), 0, 10)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, notify.GroupKey{RecipientUserID: 1, SourceActorName: "alice"}, groups[0].GroupKey)
	assert.Equal(t, e1.ID, groups[0].FirstEventID)
	assert.Equal(t, int64(2), groups[0].Events)
	assert.Equal(t, "bob", groups[1].SourceActorName)

	limited, err := repo.PendingGroups(ctx, notify.TypeMessage, day.Add(10*time.Minute), 0, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListUnsentMarkSentAndAttempts(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.Open(t)
	repo := repository.NewEventRepository(gdb)

	older := enqueue(t, repo, 1, notify.TypeMessage, "alice", day)
	newer := enqueue(t, repo, 1, notify.TypeMessage, "alice", day.Add(time.Minute))
	key := notify.GroupKey{RecipientUserID: 1, SourceActorName: "alice"}
	cutoff := day.Add(time.Hour)

	events, err := repo.ListUnsent(ctx, notify.TypeMessage, cutoff, 0, key)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, newer.ID, events[0].ID, "newest first")

	ids := []uint64{older.ID, newer.ID}
	require.NoError(t, repo.IncrementAttempts(ctx, ids))
	events, err = repo.ListUnsent(ctx, notify.TypeMessage, cutoff, 0, key)
	require.NoError(t, err)
	assert.Equal(t, 1, events[0].Attempts)

	n, err := repo.MarkSent(ctx, ids, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// second flip is a no-op
	n, err = repo.MarkSent(ctx, ids, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	events, err = repo.ListUnsent(ctx, notify.TypeMessage, cutoff, 0, key)
	require.NoError(t, err)
	assert.Empty(t, events)

	var sent db.PendingNotificationEvent
	require.NoError(t, gdb.First(&sent, older.ID).Error)
	assert.True(t, sent.IsSent)
	assert.NotNil(t, sent.SentAt)
}

func TestUnsentAttemptCeiling(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEventRepository(dbtest.Open(t))

	tired := enqueue(t, repo, 1, notify.TypeMessage, "alice", day)
	fresh := enqueue(t, repo, 1, notify.TypeMessage, "alice", day.Add(time.Minute))
	enqueue(t, repo, 2, notify.TypeMessage, "bob", day)
	require.NoError(t, repo.IncrementAttempts(ctx, []uint64{tired.ID}))
	require.NoError(t, repo.IncrementAttempts(ctx, []uint64{tired.ID}))
	key := notify.GroupKey{RecipientUserID: 1, SourceActorName: "alice"}
	cutoff := day.Add(time.Hour)

	groups, err := repo.PendingGroups(ctx, notify.TypeMessage, cutoff, 2, 10)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, fresh.ID, groups[0].FirstEventID, "the exhausted event no longer ages the group")
	assert.Equal(t, int64(1), groups[0].Events)

	events, err := repo.ListUnsent(ctx, notify.TypeMessage, cutoff, 2, key)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fresh.ID, events[0].ID)

	events, err = repo.ListUnsent(ctx, notify.TypeMessage, cutoff, 0, key)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
