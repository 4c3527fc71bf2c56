package notify_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/notify"
)

var start = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func event(t *testing.T, id, recipient uint64, typ, source, preview string, at time.Time) db.PendingNotificationEvent {
	t.Helper()
	e, err := notify.NewEvent(recipient, typ, source, preview, nil, at)
	require.NoError(t, err)
	e.ID = id
	return e
}

func reachable(ids ...uint64) map[uint64]notify.Recipient {
	out := make(map[uint64]notify.Recipient, len(ids))
	for _, id := range ids {
		out[id] = notify.Recipient{Contact: "user@example.com"}
	}
	return out
}

func TestBuildPlanGroupsByRecipientAndSource(t *testing.T) {
	events := []db.PendingNotificationEvent{
		event(t, 1, 10, notify.TypeMessage, "alice", "hi", start),
		event(t, 2, 10, notify.TypeMessage, "bob", "yo", start.Add(time.Second)),
		event(t, 3, 10, notify.TypeMessage, "alice", "are you there?", start.Add(2*time.Second)),
		event(t, 4, 11, notify.TypeMessage, "alice", "hello", start.Add(3*time.Second)),
		event(t, 5, 10, notify.TypeMatch, "alice", "", start), // other type
	}

	plan := notify.BuildPlan(notify.TypeMessage, events, reachable(10, 11), notify.PlanOptions{Previews: 5})
	require.Len(t, plan.Digests, 3)
	assert.Empty(t, plan.Skipped)

	first := plan.Digests[0]
	assert.Equal(t, notify.GroupKey{RecipientUserID: 10, SourceActorName: "alice"}, first.Key)
	assert.Equal(t, []uint64{3, 1}, first.EventIDs, "newest first")
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, "2 new messages from alice", first.Subject)
	assert.Less(t, strings.Index(first.Body, "are you there?"), strings.Index(first.Body, "- hi"))

	assert.Equal(t, "bob", plan.Digests[1].Key.SourceActorName)
	assert.Equal(t, "New message from bob", plan.Digests[1].Subject)
	assert.Equal(t, uint64(11), plan.Digests[2].Key.RecipientUserID)
}

func TestBuildPlanTruncatesPreviews(t *testing.T) {
	var events []db.PendingNotificationEvent
	for i := 1; i <= 7; i++ {
		events = append(events, event(t, uint64(i), 10, notify.TypeMessage, "alice", "msg", start.Add(time.Duration(i)*time.Second)))
	}

	plan := notify.BuildPlan(notify.TypeMessage, events, reachable(10), notify.PlanOptions{Previews: 3})
	require.Len(t, plan.Digests, 1)
	d := plan.Digests[0]
	assert.Len(t, d.EventIDs, 7)
	assert.Equal(t, 3, strings.Count(d.Body, "- msg"))
	assert.Contains(t, d.Body, "_and 4 more_")
}

func TestBuildPlanSkipsIneligibleRecipients(t *testing.T) {
	events := []db.PendingNotificationEvent{
		event(t, 1, 10, notify.TypeMatch, "alice", "", start),
		event(t, 2, 11, notify.TypeMatch, "alice", "", start),
		event(t, 3, 12, notify.TypeMatch, "alice", "", start),
		event(t, 4, 13, notify.TypeMatch, "alice", "", start),
		event(t, 5, 14, notify.TypeMatch, "alice", "", start),
	}
	recipients := map[uint64]notify.Recipient{
		10: {Contact: "a@example.com", Preference: &db.NotificationPreference{Enabled: false}},
		11: {Contact: "b@example.com", Preference: &db.NotificationPreference{Enabled: true, Frequency: notify.FrequencyInstant}},
		12: {Contact: "c@example.com", Preference: &db.NotificationPreference{Enabled: true, MatchOptIn: true, Frequency: notify.FrequencyWeekly}},
		13: {},
		14: {Contact: "e@example.com", Preference: &db.NotificationPreference{Enabled: true, MatchOptIn: true, Frequency: notify.FrequencyInstant}},
	}

	plan := notify.BuildPlan(notify.TypeMatch, events, recipients, notify.PlanOptions{})
	require.Len(t, plan.Digests, 1)
	assert.Equal(t, uint64(14), plan.Digests[0].Key.RecipientUserID)
	assert.Equal(t, "It's a match with alice", plan.Digests[0].Subject)
	assert.Contains(t, plan.Digests[0].Body, "You matched with alice")

	reasons := map[uint64]string{}
	for _, s := range plan.Skipped {
		reasons[s.Key.RecipientUserID] = s.Reason
	}
	assert.Equal(t, map[uint64]string{
		10: notify.SkipDisabled,
		11: notify.SkipOptedOut,
		12: notify.SkipFrequency,
		13: notify.SkipNoContact,
	}, reasons)
}

func TestBuildPlanMaxGroups(t *testing.T) {
	events := []db.PendingNotificationEvent{
		event(t, 3, 12, notify.TypeMessage, "c", "", start.Add(2*time.Second)),
		event(t, 1, 10, notify.TypeMessage, "a", "", start),
		event(t, 2, 11, notify.TypeMessage, "b", "", start.Add(time.Second)),
	}

	plan := notify.BuildPlan(notify.TypeMessage, events, reachable(10, 11, 12), notify.PlanOptions{MaxGroups: 2})
	require.Len(t, plan.Digests, 2)
	assert.Equal(t, uint64(10), plan.Digests[0].Key.RecipientUserID, "oldest group first")
	assert.Equal(t, uint64(11), plan.Digests[1].Key.RecipientUserID)
}

func TestBuildPlanIgnoresSentEvents(t *testing.T) {
	e := event(t, 1, 10, notify.TypeMessage, "a", "", start)
	e.IsSent = true
	plan := notify.BuildPlan(notify.TypeMessage, []db.PendingNotificationEvent{e}, reachable(10), notify.PlanOptions{})
	assert.Empty(t, plan.Digests)
}

func TestPreviewOfFallback(t *testing.T) {
	e := event(t, 1, 10, notify.TypeMessage, "alice", "", start)
	assert.Equal(t, "New message from alice", notify.PreviewOf(e))

	e = event(t, 2, 10, notify.TypeMessage, "alice", "see you at 8", start)
	assert.Equal(t, "see you at 8", notify.PreviewOf(e))
}
