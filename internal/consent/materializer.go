package consent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
	"github.com/oggyb/muzz-consent/internal/metrics"
	"github.com/oggyb/muzz-consent/internal/notify"
)

// MaterializeResult describes the match row for a pair. Duplicate marks a
// no-op because the pair was already matched.
type MaterializeResult struct {
	MatchID   uint64
	UserA     uint64
	UserB     uint64
	Duplicate bool
}

// Materializer writes the canonical match for a pair.
type Materializer struct {
	matches  MatchStore
	profiles ProfileReader
	clock    clock.Clock
	logger   *slog.Logger
}

func NewMaterializer(matches MatchStore, profiles ProfileReader, clk clock.Clock, logger *slog.Logger) *Materializer {
	return &Materializer{matches: matches, profiles: profiles, clock: clk, logger: logger}
}

// Materialize creates the match for {a, b} if absent. Argument order does
// not matter. The two "match" notification events are written in the same
// transaction as the match row, so they exist exactly once per match.
func (m *Materializer) Materialize(ctx context.Context, a, b uint64) (MaterializeResult, error) {
	if a == b {
		return MaterializeResult{}, fmt.Errorf("materialize %d with itself: %w", a, svcErr.ErrInvalidTransition)
	}
	lo, hi := CanonicalPair(a, b)
	now := m.clock.Now()

	loName, err := m.profiles.DisplayName(ctx, lo)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("load display name: %w", err)
	}
	hiName, err := m.profiles.DisplayName(ctx, hi)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("load display name: %w", err)
	}

	events := make([]db.PendingNotificationEvent, 0, 2)
	for _, p := range []struct {
		recipient, other uint64
		otherName        string
	}{
		{lo, hi, hiName},
		{hi, lo, loName},
	} {
		e, err := notify.NewEvent(p.recipient, notify.TypeMatch, p.otherName,
			fmt.Sprintf("You matched with %s", p.otherName),
			map[string]any{"other_user_id": p.other}, now)
		if err != nil {
			return MaterializeResult{}, err
		}
		events = append(events, e)
	}

	match, created, err := m.matches.CreateIfAbsent(ctx, &db.Match{UserA: lo, UserB: hi, CreatedAt: now}, events)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("materialize match %d-%d: %w", lo, hi, err)
	}

	res := MaterializeResult{MatchID: match.ID, UserA: lo, UserB: hi, Duplicate: !created}
	if created {
		metrics.MatchesMaterialized.WithLabelValues("created").Inc()
		m.logger.Info("match materialized", "match_id", match.ID, "user_a", lo, "user_b", hi)
	} else {
		metrics.MatchesMaterialized.WithLabelValues("duplicate").Inc()
		m.logger.Debug("match already exists", "match_id", match.ID, "user_a", lo, "user_b", hi)
	}
	return res, nil
}
