package notify

import "github.com/oggyb/muzz-consent/internal/db"

// Notification types.
const (
	TypeMatch        = "match"
	TypeMessage      = "message"
	TypeIntroduction = "introduction"
)

// Delivery frequencies. Only instant is serviced by the batcher; the others
// belong to the periodic digest job.
const (
	FrequencyInstant = "instant"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
)

// Skip reasons.
const (
	SkipDisabled  = "disabled"
	SkipOptedOut  = "opted_out"
	SkipFrequency = "frequency"
	SkipNoContact = "no_contact"
)

// GroupKey identifies one digest: all unsent events of a type for one
// recipient from one source.
type GroupKey struct {
	RecipientUserID uint64
	SourceActorName string
}

// PendingGroup is a group found by the batcher's scan.
type PendingGroup struct {
	GroupKey
	FirstEventID uint64
	Events       int64
}

// Recipient is what the batcher needs to know about a recipient at send
// time. A nil Preference means defaults: enabled, instant, all types.
type Recipient struct {
	Contact    string
	Preference *db.NotificationPreference
}

// Eligible reports whether r should get an instant digest of type typ now,
// and the skip reason when not.
func Eligible(r Recipient, typ string) (bool, string) {
	if p := r.Preference; p != nil {
		if !p.Enabled {
			return false, SkipDisabled
		}
		if !optedIn(p, typ) {
			return false, SkipOptedOut
		}
		if p.Frequency != "" && p.Frequency != FrequencyInstant {
			return false, SkipFrequency
		}
	}
	if r.Contact == "" {
		return false, SkipNoContact
	}
	return true, ""
}

func optedIn(p *db.NotificationPreference, typ string) bool {
	switch typ {
	case TypeMatch:
		return p.MatchOptIn
	case TypeMessage:
		return p.MessageOptIn
	case TypeIntroduction:
		return p.IntroductionOptIn
	default:
		return true
	}
}
