package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/oggyb/muzz-consent/internal/cache"
	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
	"github.com/oggyb/muzz-consent/internal/metrics"
)

var tracer = otel.Tracer("muzz.notify")

// EventStore is the batcher's view of pending notification events.
type EventStore interface {
	PendingGroups(ctx context.Context, typ string, cutoff time.Time, maxAttempts, limit int) ([]PendingGroup, error)
	ListUnsent(ctx context.Context, typ string, cutoff time.Time, maxAttempts int, key GroupKey) ([]db.PendingNotificationEvent, error)
	MarkSent(ctx context.Context, ids []uint64, at time.Time) (int64, error)
	IncrementAttempts(ctx context.Context, ids []uint64) error
}

// RecipientStore reads current preferences and contacts.
type RecipientStore interface {
	Recipients(ctx context.Context, userIDs []uint64) (map[uint64]Recipient, error)
}

// Locker serializes batcher runs across processes.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Options configures the batcher.
type Options struct {
	Types       []string
	Dwell       time.Duration
	MaxGroups   int
	ScanLimit   int
	Previews    int
	SendTimeout time.Duration
	// SendRate is digests per second; zero disables throttling.
	SendRate float64
	LockTTL  time.Duration
	// MaxAttempts is the delivery ceiling. Events that reach it stay
	// unsent and are no longer scanned.
	MaxAttempts int
}

// Summary reports one run.
type Summary struct {
	GroupsProcessed int `json:"groups_processed"`
	EventsFlushed   int `json:"events_flushed"`
	GroupsSkipped   int `json:"groups_skipped"`
	GroupsFailed    int `json:"groups_failed"`
	// GroupsDeadLettered counts failed groups that reached the attempt ceiling.
	GroupsDeadLettered int `json:"groups_dead_lettered"`
}

func (s *Summary) add(o Summary) {
	s.GroupsProcessed += o.GroupsProcessed
	s.EventsFlushed += o.EventsFlushed
	s.GroupsSkipped += o.GroupsSkipped
	s.GroupsFailed += o.GroupsFailed
	s.GroupsDeadLettered += o.GroupsDeadLettered
}

// Batcher turns dwelled pending events into digests. Delivery is
// at-least-once: events are marked sent only after a successful send.
type Batcher struct {
	events     EventStore
	recipients RecipientStore
	sender     Sender
	locker     Locker
	clock      clock.Clock
	logger     *slog.Logger
	opts       Options
	limiter    *rate.Limiter
}

// NewBatcher wires a batcher. locker may be nil for single-process use.
func NewBatcher(events EventStore, recipients RecipientStore, sender Sender, locker Locker, clk clock.Clock, logger *slog.Logger, opts Options) *Batcher {
	if len(opts.Types) == 0 {
		opts.Types = []string{TypeMatch}
	}
	if opts.MaxGroups <= 0 {
		opts.MaxGroups = 200
	}
	if opts.ScanLimit < opts.MaxGroups {
		opts.ScanLimit = opts.MaxGroups
	}
	if opts.Previews <= 0 {
		opts.Previews = 5
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}

	b := &Batcher{
		events:     events,
		recipients: recipients,
		sender:     sender,
		locker:     locker,
		clock:      clk,
		logger:     logger,
		opts:       opts,
	}
	if opts.SendRate > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.SendRate), 1)
	}
	return b
}

// Run processes every configured type once. The group ceiling is shared
// across types; leftovers wait for the next run.
func (b *Batcher) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	log := b.logger.With("run_id", runID)

	ctx, span := tracer.Start(ctx, "notify.Batcher.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	started := time.Now()
	defer func() { metrics.BatchRunDuration.Observe(time.Since(started).Seconds()) }()

	var total Summary
	budget := b.opts.MaxGroups
	for _, typ := range b.opts.Types {
		if budget <= 0 {
			break
		}
		s, err := b.runType(ctx, log, typ, budget)
		total.add(s)
		budget -= s.GroupsProcessed + s.GroupsFailed
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return total, fmt.Errorf("batch %s: %w", typ, err)
		}
	}

	span.SetAttributes(
		attribute.Int("groups_processed", total.GroupsProcessed),
		attribute.Int("events_flushed", total.EventsFlushed),
	)
	log.Info("notification batch finished",
		"groups_processed", total.GroupsProcessed,
		"events_flushed", total.EventsFlushed,
		"groups_skipped", total.GroupsSkipped,
		"groups_failed", total.GroupsFailed,
		"groups_dead_lettered", total.GroupsDeadLettered,
	)
	return total, nil
}

func lockKey(typ string) string { return "batcher:lock:" + typ }

func (b *Batcher) runType(ctx context.Context, log *slog.Logger, typ string, budget int) (Summary, error) {
	var s Summary

	if b.locker != nil {
		token, err := b.locker.AcquireLock(ctx, lockKey(typ), b.opts.LockTTL)
		if errors.Is(err, cache.ErrLockHeld) {
			log.Info("batcher already running elsewhere", "type", typ)
			return s, nil
		}
		if err != nil {
			return s, fmt.Errorf("acquire lock: %w", err)
		}
		defer func() {
			if err := b.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey(typ), token); err != nil {
				log.Warn("release batcher lock failed", "type", typ, "err", err)
			}
		}()
	}

	cutoff := b.clock.Now().Add(-b.opts.Dwell)
	groups, err := b.events.PendingGroups(ctx, typ, cutoff, b.opts.MaxAttempts, b.opts.ScanLimit)
	if err != nil {
		return s, fmt.Errorf("scan pending groups: %w", err)
	}
	if len(groups) == 0 {
		return s, nil
	}

	ids := make([]uint64, 0, len(groups))
	seen := make(map[uint64]struct{}, len(groups))
	for _, g := range groups {
		if _, ok := seen[g.RecipientUserID]; !ok {
			seen[g.RecipientUserID] = struct{}{}
			ids = append(ids, g.RecipientUserID)
		}
	}
	recipients, err := b.recipients.Recipients(ctx, ids)
	if err != nil {
		return s, fmt.Errorf("load recipients: %w", err)
	}

	// Ineligible groups stay unsent for the digest job and do not use up
	// the group ceiling.
	var snapshot []db.PendingNotificationEvent
	selected := 0
	for _, g := range groups {
		if selected >= budget {
			break
		}
		if ok, reason := Eligible(recipients[g.RecipientUserID], typ); !ok {
			s.GroupsSkipped++
			metrics.BatchGroups.WithLabelValues(typ, "skipped").Inc()
			log.Debug("notification group skipped",
				"type", typ,
				"recipient", g.RecipientUserID,
				"source", g.SourceActorName,
				"reason", reason,
			)
			continue
		}
		evs, err := b.events.ListUnsent(ctx, typ, cutoff, b.opts.MaxAttempts, g.GroupKey)
		if err != nil {
			return s, fmt.Errorf("load group events: %w", err)
		}
		snapshot = append(snapshot, evs...)
		selected++
	}

	plan := BuildPlan(typ, snapshot, recipients, PlanOptions{Previews: b.opts.Previews, MaxGroups: budget})
	s.GroupsSkipped += len(plan.Skipped)

	for _, d := range plan.Digests {
		if err := b.dispatch(ctx, d); err != nil {
			s.GroupsFailed++
			metrics.BatchGroups.WithLabelValues(typ, "failed").Inc()
			if incErr := b.events.IncrementAttempts(context.WithoutCancel(ctx), d.EventIDs); incErr != nil {
				log.Warn("record delivery attempt failed", "err", incErr)
			}
			log.Warn("digest delivery failed",
				"type", typ,
				"recipient", d.Key.RecipientUserID,
				"source", d.Key.SourceActorName,
				"events", len(d.EventIDs),
				"attempt", d.MaxAttempts+1,
				"err", err,
			)
			if d.MaxAttempts+1 >= b.opts.MaxAttempts {
				s.GroupsDeadLettered++
				metrics.BatchGroups.WithLabelValues(typ, "dead_lettered").Inc()
				log.Error("digest dead-lettered",
					"type", typ,
					"recipient", d.Key.RecipientUserID,
					"source", d.Key.SourceActorName,
					"event_ids", d.EventIDs,
					"attempts", d.MaxAttempts+1,
				)
			}
			if ctx.Err() != nil {
				return s, ctx.Err()
			}
			continue
		}

		flushed, err := b.events.MarkSent(context.WithoutCancel(ctx), d.EventIDs, b.clock.Now())
		if err != nil {
			// Sent but not marked: the next run delivers this group again.
			s.GroupsFailed++
			metrics.BatchGroups.WithLabelValues(typ, "failed").Inc()
			log.Error("mark events sent failed",
				"type", typ,
				"recipient", d.Key.RecipientUserID,
				"source", d.Key.SourceActorName,
				"err", err,
			)
			continue
		}

		s.GroupsProcessed++
		s.EventsFlushed += int(flushed)
		metrics.BatchGroups.WithLabelValues(typ, "sent").Inc()
		metrics.BatchEventsFlushed.WithLabelValues(typ).Add(float64(flushed))
	}

	return s, nil
}

// dispatch sends one digest under the per-send timeout. A timeout counts as
// a failure; there is no inline retry.
func (b *Batcher) dispatch(ctx context.Context, d Digest) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, b.opts.SendTimeout)
	defer cancel()

	started := time.Now()
	done := make(chan error, 1)
	go func() { done <- b.sender.Send(sendCtx, d.Contact, d.Subject, d.Body) }()

	var err error
	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = sendCtx.Err()
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.DeliveryLatency.WithLabelValues(result).Observe(time.Since(started).Seconds())

	if err != nil {
		return fmt.Errorf("%w: %v", svcErr.ErrDeliveryFailure, err)
	}
	return nil
}
