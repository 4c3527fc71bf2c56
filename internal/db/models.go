package db

import (
	"time"

	"gorm.io/datatypes"
)

// Signal kinds.
const (
	KindPass          = "pass"
	KindLike          = "like"
	KindSuperInterest = "super_interest"
)

// IntroductionRequest statuses.
const (
	IntroPending  = "pending"
	IntroApproved = "approved"
	IntroRejected = "rejected"
)

// User table
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"default:true"`
	LastLoginAt  time.Time
	Gender       string    `gorm:"size:16;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Profile holds the facts owned by profile management that the consent
// pipeline reads: the subscription tier and the guardian (wali) policy.
// A user without a row is on the free tier with no guardian.
type Profile struct {
	UserID                  uint64  `gorm:"primaryKey;autoIncrement:false"`
	Tier                    string  `gorm:"size:32;not null"`
	RequireGuardianApproval bool    `gorm:"not null"`
	GuardianUserID          *uint64 `gorm:"index"`
	GuardianContact         string  `gorm:"size:255"`
	UpdatedAt               time.Time
}

// NotificationPreference is the recipient's delivery setting. A user
// without a row gets instant delivery of every type.
//
// No `default` tags on the booleans: gorm would skip the false zero value
// on insert and the column default would win.
type NotificationPreference struct {
	UserID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	Enabled           bool   `gorm:"not null"`
	MatchOptIn        bool   `gorm:"not null"`
	MessageOptIn      bool   `gorm:"not null"`
	IntroductionOptIn bool   `gorm:"not null"`
	Frequency         string `gorm:"size:16;not null"`
	UpdatedAt         time.Time
}

// Signal is one user's directional interest toward another. Rows are
// append-only; the same pair may appear many times.
//
// Indexes:
//   - idx_signal_from_created(from_user_id, created_at)
//     Daily quota counts.
//   - idx_signal_pair_kind(from_user_id, to_user_id, kind)
//     Mutual-interest lookups.
type Signal struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	FromUserID uint64    `gorm:"not null;index:idx_signal_from_created,priority:1;index:idx_signal_pair_kind,priority:1"`
	ToUserID   uint64    `gorm:"not null;index:idx_signal_pair_kind,priority:2"`
	Kind       string    `gorm:"size:16;not null;index:idx_signal_pair_kind,priority:3"`
	CreatedAt  time.Time `gorm:"not null;index:idx_signal_from_created,priority:2"`
}

// IntroductionRequest is the guardian approval record for a mutual pair.
//
// Unique index ux_intro_pair(pair_low, pair_high) allows one request per
// unordered pair. Requests never leave a terminal state, so this is also the
// "one live request" guarantee and the reason a rejected pair stays rejected.
//
// RecipientID is the ward whose guardian decides.
type IntroductionRequest struct {
	ID               uint64  `gorm:"primaryKey;autoIncrement"`
	RequesterID      uint64  `gorm:"not null;index"`
	RecipientID      uint64  `gorm:"not null;index"`
	PairLow          uint64  `gorm:"not null;uniqueIndex:ux_intro_pair,priority:1"`
	PairHigh         uint64  `gorm:"not null;uniqueIndex:ux_intro_pair,priority:2"`
	Status           string  `gorm:"size:16;not null;index"`
	GuardianID       *uint64 `gorm:"index"`
	GuardianContact  string  `gorm:"size:255"`
	GuardianApproved *bool
	Message          *string `gorm:"type:text"`
	GuardianNotes    *string `gorm:"type:text"`
	DecidedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Live reports whether the request still blocks a new one for the pair.
func (r *IntroductionRequest) Live() bool {
	return r.Status == IntroPending || r.Status == IntroApproved
}

// Match is the canonical record for an unordered pair: UserA < UserB.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserA     uint64    `gorm:"not null;uniqueIndex:ux_match_pair,priority:1"`
	UserB     uint64    `gorm:"not null;uniqueIndex:ux_match_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// Other returns the participant that is not userID.
func (m *Match) Other(userID uint64) uint64 {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

// PendingNotificationEvent is written once per triggering action and
// flipped to sent exactly once by the notification batcher.
//
// Index idx_event_pending(is_sent, notification_type, created_at) serves the
// batcher's "unsent and older than dwell" scan.
type PendingNotificationEvent struct {
	ID               uint64         `gorm:"primaryKey;autoIncrement"`
	RecipientUserID  uint64         `gorm:"not null;index:idx_event_group,priority:1"`
	NotificationType string         `gorm:"size:32;not null;index:idx_event_pending,priority:2"`
	SourceActorName  string         `gorm:"size:128;not null;index:idx_event_group,priority:2"`
	Payload          datatypes.JSON `gorm:"type:json"`
	Attempts         int            `gorm:"not null"`
	CreatedAt        time.Time      `gorm:"not null;index:idx_event_pending,priority:3"`
	IsSent           bool           `gorm:"not null;index:idx_event_pending,priority:1"`
	SentAt           *time.Time
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Profile{},
		&NotificationPreference{},
		&Signal{},
		&IntroductionRequest{},
		&Match{},
		&PendingNotificationEvent{},
	}
}
