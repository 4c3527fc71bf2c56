package consent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oggyb/muzz-consent/internal/clock"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
	"github.com/oggyb/muzz-consent/internal/metrics"
)

// QuotaEnforcer gates positive signals by the tier's daily ceiling.
//
// The check runs before the signal is written and nothing reserves a slot,
// so concurrent submissions by one user can each pass and over-admit by the
// number in flight. This is a soft limit.
//
// The cached count is filled from the store and dropped by the Ledger on
// every positive append. A refill that races an append can cache a count
// one short, but only until the author's next positive append drops it, so
// the error never accumulates.
type QuotaEnforcer struct {
	signals  SignalStore
	counter  DailyCounter
	ceilings map[string]int
	clock    clock.Clock
	logger   *slog.Logger
}

// Usage is a user's positive signal consumption for the current UTC day.
type Usage struct {
	Used      int64
	Limit     int
	Unlimited bool
}

// Remaining is the number of positive signals left today, -1 if unlimited.
func (u Usage) Remaining() int64 {
	if u.Unlimited {
		return -1
	}
	if left := int64(u.Limit) - u.Used; left > 0 {
		return left
	}
	return 0
}

// NewQuotaEnforcer wires the enforcer. counter may be nil, in which case
// every check counts from the store. Tiers missing from ceilings are
// unlimited.
func NewQuotaEnforcer(signals SignalStore, counter DailyCounter, ceilings map[string]int, clk clock.Clock, logger *slog.Logger) *QuotaEnforcer {
	normalized := make(map[string]int, len(ceilings))
	for tier, limit := range ceilings {
		normalized[normalizeTier(tier)] = limit
	}
	return &QuotaEnforcer{
		signals:  signals,
		counter:  counter,
		ceilings: normalized,
		clock:    clk,
		logger:   logger,
	}
}

func normalizeTier(tier string) string {
	tier = strings.ToLower(strings.TrimSpace(tier))
	if tier == "" {
		return TierFree
	}
	return tier
}

// Ceiling returns the tier's daily limit and whether it has one.
func (q *QuotaEnforcer) Ceiling(tier string) (int, bool) {
	limit, ok := q.ceilings[normalizeTier(tier)]
	return limit, ok
}

// Authorize returns ErrQuotaExceeded when a positive signal by userID would
// exceed the tier ceiling. Pass signals and unlimited tiers always pass.
func (q *QuotaEnforcer) Authorize(ctx context.Context, userID uint64, tier string, kind Kind) error {
	if !kind.Positive() {
		return nil
	}
	limit, limited := q.Ceiling(tier)
	if !limited {
		return nil
	}

	used, err := q.used(ctx, userID)
	if err != nil {
		return err
	}
	if used >= int64(limit) {
		metrics.QuotaRejections.WithLabelValues(normalizeTier(tier)).Inc()
		return fmt.Errorf("user %d used %d/%d today: %w", userID, used, limit, svcErr.ErrQuotaExceeded)
	}
	return nil
}

// Usage reports today's consumption for userID on tier.
func (q *QuotaEnforcer) Usage(ctx context.Context, userID uint64, tier string) (Usage, error) {
	used, err := q.used(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	limit, limited := q.Ceiling(tier)
	return Usage{Used: used, Limit: limit, Unlimited: !limited}, nil
}

func (q *QuotaEnforcer) used(ctx context.Context, userID uint64) (int64, error) {
	now := q.clock.Now()

	if q.counter != nil {
		n, cached, err := q.counter.GetDailyLikes(ctx, userID, now)
		if err != nil {
			q.logger.Warn("quota counter read failed", "user", userID, "err", err)
		} else if cached {
			return n, nil
		}
	}

	n, err := q.signals.CountPositiveSince(ctx, userID, clock.StartOfDay(now))
	if err != nil {
		return 0, fmt.Errorf("count positive signals: %w", err)
	}

	if q.counter != nil {
		if err := q.counter.SetDailyLikes(ctx, userID, now, n); err != nil {
			q.logger.Warn("quota counter refresh failed", "user", userID, "err", err)
		}
	}
	return n, nil
}
