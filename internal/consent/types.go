// Package consent turns interest signals into matches: the interest
// ledger, the tier quota, mutual-interest detection, the guardian gate and
// the match materializer, plus the Pipeline that chains them for the swipe
// flow.
//
// Pair uniqueness is enforced by the store (unique keys on the canonical
// pair), never by in-process locks, so callers in different processes
// converge on the same rows.
package consent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
)

// Kind is a signal kind.
type Kind string

const (
	KindPass          Kind = db.KindPass
	KindLike          Kind = db.KindLike
	KindSuperInterest Kind = db.KindSuperInterest
)

// ParseKind accepts the three signal kinds, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%q: %w", s, svcErr.ErrInvalidKind)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case KindPass, KindLike, KindSuperInterest:
		return true
	}
	return false
}

// Positive reports whether k counts toward quota and mutual interest.
func (k Kind) Positive() bool {
	return k == KindLike || k == KindSuperInterest
}

// PositiveKinds lists the stored values of positive kinds.
func PositiveKinds() []string {
	return []string{db.KindLike, db.KindSuperInterest}
}

// TierFree is the tier assumed for users without a profile row.
const TierFree = "free"

// GuardianPolicy is the profile store's guardian (wali) setting for a ward.
type GuardianPolicy struct {
	WardUserID     uint64
	Required       bool
	GuardianUserID *uint64
	Contact        string
}

// CanonicalPair orders a pair so (a, b) and (b, a) share one key.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// SignalStore is the ledger's storage.
type SignalStore interface {
	CreateSignal(ctx context.Context, s *db.Signal) error
	CountPositiveSince(ctx context.Context, userID uint64, since time.Time) (int64, error)
	HasPositive(ctx context.Context, from, to uint64) (bool, error)
}

// ProfileReader is the profile/tier collaborator.
type ProfileReader interface {
	GetSubscriptionTier(ctx context.Context, userID uint64) (string, error)
	GetGuardianPolicy(ctx context.Context, userID uint64) (GuardianPolicy, error)
	DisplayName(ctx context.Context, userID uint64) (string, error)
}

// IntroductionStore persists introduction requests.
type IntroductionStore interface {
	// CreateIfAbsent inserts req unless the pair already has a request, and
	// returns the stored row either way.
	CreateIfAbsent(ctx context.Context, req *db.IntroductionRequest) (*db.IntroductionRequest, bool, error)
	Get(ctx context.Context, id uint64) (*db.IntroductionRequest, error)
	// Transition moves a pending request to status and writes events with
	// it; false, and no events, when the request was not pending.
	Transition(ctx context.Context, id uint64, status string, notes *string, at time.Time, events []db.PendingNotificationEvent) (bool, error)
}

// MatchStore persists matches.
type MatchStore interface {
	// CreateIfAbsent inserts m and events atomically unless the pair
	// already has a match, and returns the stored match either way.
	CreateIfAbsent(ctx context.Context, m *db.Match, events []db.PendingNotificationEvent) (*db.Match, bool, error)
	// GetByPair returns ErrNotFound when the pair is not matched.
	GetByPair(ctx context.Context, a, b uint64) (*db.Match, error)
}

// DailyCounter caches per-day positive signal counts. The cache is only
// ever filled from a store count; writers invalidate it.
type DailyCounter interface {
	GetDailyLikes(ctx context.Context, userID uint64, day time.Time) (int64, bool, error)
	SetDailyLikes(ctx context.Context, userID uint64, day time.Time, count int64) error
	InvalidateDailyLikes(ctx context.Context, userID uint64, day time.Time) error
}
