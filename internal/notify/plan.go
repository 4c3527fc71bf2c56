package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oggyb/muzz-consent/internal/db"
)

// PlanOptions bounds one planning pass.
type PlanOptions struct {
	// Previews is the number of most recent previews rendered per digest.
	Previews int
	// MaxGroups caps the number of digests; zero means no cap.
	MaxGroups int
}

// Digest is one rendered message covering every event of a group.
type Digest struct {
	Key         GroupKey
	Type        string
	Contact     string
	Subject     string
	Body        string
	EventIDs    []uint64
	Total       int
	MaxAttempts int
}

// Skip records a group left untouched and why.
type Skip struct {
	Key    GroupKey
	Reason string
	Events int
}

// Plan is the outcome of BuildPlan.
type Plan struct {
	Digests []Digest
	Skipped []Skip
}

// BuildPlan groups a snapshot of unsent events of one type by
// (recipient, source), drops groups whose recipient should not get an
// instant digest, and renders one digest per remaining group. Groups are
// ordered by their oldest event so the longest waiting go first. It does
// no I/O.
func BuildPlan(typ string, events []db.PendingNotificationEvent, recipients map[uint64]Recipient, opts PlanOptions) Plan {
	groups := make(map[GroupKey][]db.PendingNotificationEvent)
	var order []GroupKey
	for _, e := range events {
		if e.IsSent || e.NotificationType != typ {
			continue
		}
		k := GroupKey{RecipientUserID: e.RecipientUserID, SourceActorName: e.SourceActorName}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	oldest := func(k GroupKey) db.PendingNotificationEvent {
		first := groups[k][0]
		for _, e := range groups[k][1:] {
			if olderThan(e, first) {
				first = e
			}
		}
		return first
	}
	sort.SliceStable(order, func(i, j int) bool {
		return olderThan(oldest(order[i]), oldest(order[j]))
	})

	var plan Plan
	for _, k := range order {
		evs := groups[k]
		r := recipients[k.RecipientUserID]
		if ok, reason := Eligible(r, typ); !ok {
			plan.Skipped = append(plan.Skipped, Skip{Key: k, Reason: reason, Events: len(evs)})
			continue
		}
		if opts.MaxGroups > 0 && len(plan.Digests) >= opts.MaxGroups {
			break
		}
		plan.Digests = append(plan.Digests, render(typ, k, r.Contact, evs, opts.Previews))
	}
	return plan
}

func render(typ string, k GroupKey, contact string, evs []db.PendingNotificationEvent, previews int) Digest {
	sorted := append([]db.PendingNotificationEvent(nil), evs...)
	sort.Slice(sorted, func(i, j int) bool { return olderThan(sorted[j], sorted[i]) })

	d := Digest{
		Key:     k,
		Type:    typ,
		Contact: contact,
		Total:   len(sorted),
	}
	for _, e := range sorted {
		d.EventIDs = append(d.EventIDs, e.ID)
		if e.Attempts > d.MaxAttempts {
			d.MaxAttempts = e.Attempts
		}
	}

	shown := sorted
	if previews > 0 && len(shown) > previews {
		shown = shown[:previews]
	}
	lines := make([]string, 0, len(shown))
	for _, e := range shown {
		lines = append(lines, PreviewOf(e))
	}

	d.Subject = subjectFor(typ, k.SourceActorName, d.Total)
	d.Body = bodyFor(k.SourceActorName, lines, d.Total-len(shown))
	return d
}

func subjectFor(typ, source string, total int) string {
	switch typ {
	case TypeMatch:
		return fmt.Sprintf("It's a match with %s", source)
	case TypeMessage:
		if total == 1 {
			return fmt.Sprintf("New message from %s", source)
		}
		return fmt.Sprintf("%d new messages from %s", total, source)
	case TypeIntroduction:
		return fmt.Sprintf("Introduction update: %s", source)
	default:
		if total == 1 {
			return fmt.Sprintf("New notification from %s", source)
		}
		return fmt.Sprintf("%d new notifications from %s", total, source)
	}
}

// bodyFor renders a markdown body; senders that need HTML convert it.
func bodyFor(source string, lines []string, more int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", source)
	for _, l := range lines {
		fmt.Fprintf(&b, "- %s\n", l)
	}
	if more > 0 {
		fmt.Fprintf(&b, "\n_and %d more_\n", more)
	}
	return b.String()
}

func olderThan(a, b db.PendingNotificationEvent) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
