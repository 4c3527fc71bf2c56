package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/oggyb/muzz-consent/internal/db"
)

// PreviewKey is the payload field rendered into digests.
const PreviewKey = "preview"

// NewEvent builds an unsent event. extra is merged into the JSON payload
// next to the preview.
func NewEvent(recipient uint64, typ, source, preview string, extra map[string]any, at time.Time) (db.PendingNotificationEvent, error) {
	payload := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		payload[k] = v
	}
	if preview != "" {
		payload[PreviewKey] = preview
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return db.PendingNotificationEvent{}, fmt.Errorf("marshal event payload: %w", err)
	}
	return db.PendingNotificationEvent{
		RecipientUserID:  recipient,
		NotificationType: typ,
		SourceActorName:  source,
		Payload:          datatypes.JSON(raw),
		CreatedAt:        at.UTC(),
	}, nil
}

// PreviewOf returns the event's preview line, falling back to a generic
// line for the type.
func PreviewOf(e db.PendingNotificationEvent) string {
	if len(e.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(e.Payload, &payload); err == nil {
			if s, ok := payload[PreviewKey].(string); ok && s != "" {
				return s
			}
		}
	}
	switch e.NotificationType {
	case TypeMatch:
		return fmt.Sprintf("You matched with %s", e.SourceActorName)
	case TypeMessage:
		return fmt.Sprintf("New message from %s", e.SourceActorName)
	case TypeIntroduction:
		return fmt.Sprintf("Introduction update from %s", e.SourceActorName)
	default:
		return fmt.Sprintf("Update from %s", e.SourceActorName)
	}
}
