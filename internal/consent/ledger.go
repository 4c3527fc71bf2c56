package consent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
	"github.com/oggyb/muzz-consent/internal/metrics"
)

// Ledger appends signals. It does not deduplicate and knows nothing about
// mutual interest. After a positive append it drops the cached daily count
// of the author, whichever operation did the append.
type Ledger struct {
	store   SignalStore
	counter DailyCounter
	clock   clock.Clock
	logger  *slog.Logger
}

// NewLedger wires the ledger. counter may be nil.
func NewLedger(store SignalStore, counter DailyCounter, clk clock.Clock, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, counter: counter, clock: clk, logger: logger}
}

// RecordSignal appends from -> to of kind and returns the new signal id.
func (l *Ledger) RecordSignal(ctx context.Context, from, to uint64, kind Kind) (uint64, error) {
	if from == to {
		return 0, fmt.Errorf("record signal %d->%d: %w", from, to, svcErr.ErrSelfAction)
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("record signal %q: %w", kind, svcErr.ErrInvalidKind)
	}

	s := &db.Signal{
		FromUserID: from,
		ToUserID:   to,
		Kind:       string(kind),
		CreatedAt:  l.clock.Now(),
	}
	if err := l.store.CreateSignal(ctx, s); err != nil {
		return 0, fmt.Errorf("record signal: %w", err)
	}

	metrics.SignalsRecorded.WithLabelValues(string(kind)).Inc()

	// Cache errors are logged, never returned: the store stays authoritative.
	if l.counter != nil && kind.Positive() {
		if err := l.counter.InvalidateDailyLikes(ctx, from, s.CreatedAt); err != nil {
			l.logger.Warn("quota counter invalidation failed", "user", from, "err", err)
		}
	}
	return s.ID, nil
}
