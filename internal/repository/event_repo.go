package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-consent/internal/db"
	"github.com/oggyb/muzz-consent/internal/notify"
)

// EventRepository is the outbox of pending notification events.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new repository bound to the given DB connection.
func NewEventRepository(database *gorm.DB) *EventRepository {
	return &EventRepository{db: database}
}

// Enqueue inserts events and fills in their ids.
func (r *EventRepository) Enqueue(ctx context.Context, events ...*db.PendingNotificationEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(events).Error
}

type pendingGroupRow struct {
	RecipientUserID uint64
	SourceActorName string
	FirstEventID    uint64
	Events          int64
}

// PendingGroups lists (recipient, source) groups of unsent events of typ
// created at or before cutoff, the oldest group first.
//
// Behavior:
//   - A group's age is its lowest event id; ids grow with insertion time.
//   - At most limit groups are returned.
//   - Events with maxAttempts or more delivery attempts are left out;
//     zero disables the ceiling.
//
// Example:
//
//	repo.PendingGroups(ctx, "message", now.Add(-2*time.Minute), 5, 500)
func (r *EventRepository) PendingGroups(ctx context.Context, typ string, cutoff time.Time, maxAttempts, limit int) ([]notify.PendingGroup, error) {
	var rows []pendingGroupRow
	err := r.unsent(ctx, typ, cutoff, maxAttempts).
		Model(&db.PendingNotificationEvent{}).
		Select("recipient_user_id, source_actor_name, MIN(id) AS first_event_id, COUNT(*) AS events").
		Group("recipient_user_id, source_actor_name").
		Order("first_event_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	groups := make([]notify.PendingGroup, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, notify.PendingGroup{
			GroupKey: notify.GroupKey{
				RecipientUserID: row.RecipientUserID,
				SourceActorName: row.SourceActorName,
			},
			FirstEventID: row.FirstEventID,
			Events:       row.Events,
		})
	}
	return groups, nil
}

func (r *EventRepository) unsent(ctx context.Context, typ string, cutoff time.Time, maxAttempts int) *gorm.DB {
	q := r.db.WithContext(ctx).
		Where("is_sent = ? AND notification_type = ? AND created_at <= ?", false, typ, cutoff)
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	return q
}

// ListUnsent returns every unsent event of one group created at or before
// cutoff and still under maxAttempts, newest first.
func (r *EventRepository) ListUnsent(ctx context.Context, typ string, cutoff time.Time, maxAttempts int, key notify.GroupKey) ([]db.PendingNotificationEvent, error) {
	var events []db.PendingNotificationEvent
	err := r.unsent(ctx, typ, cutoff, maxAttempts).
		Where("recipient_user_id = ? AND source_actor_name = ?", key.RecipientUserID, key.SourceActorName).
		Order("created_at DESC, id DESC").
		Find(&events).Error
	return events, err
}

// MarkSent flips the given events to sent. Events already sent are left
// alone, so the returned count only includes rows this call flipped.
func (r *EventRepository) MarkSent(ctx context.Context, ids []uint64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&db.PendingNotificationEvent{}).
		Where("id IN ? AND is_sent = ?", ids, false).
		Updates(map[string]any{
			"is_sent": true,
			"sent_at": at,
		})
	return res.RowsAffected, res.Error
}

// IncrementAttempts bumps the delivery attempt counter of unsent events.
func (r *EventRepository) IncrementAttempts(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&db.PendingNotificationEvent{}).
		Where("id IN ? AND is_sent = ?", ids, false).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}
