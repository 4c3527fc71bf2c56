package consent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oggyb/muzz-consent/internal/clock"
	"github.com/oggyb/muzz-consent/internal/db"
	svcErr "github.com/oggyb/muzz-consent/internal/errors"
	"github.com/oggyb/muzz-consent/internal/metrics"
	"github.com/oggyb/muzz-consent/internal/notify"
)

// ResolutionKind is the guardian gate's verdict on a mutual pair.
type ResolutionKind string

const (
	// ResolutionDirectMatch: no guardian involved, materialize now.
	ResolutionDirectMatch ResolutionKind = "direct_match"
	// ResolutionNeedsApproval: a request is pending with the guardian.
	ResolutionNeedsApproval ResolutionKind = "needs_approval"
	// ResolutionApproved: the pair's request was already approved; the
	// caller materializes, which is a no-op if the match exists.
	ResolutionApproved ResolutionKind = "approved"
	// ResolutionDeclined: the pair's request was rejected. Terminal.
	ResolutionDeclined ResolutionKind = "declined"
)

// Resolution is the outcome of Gate.Resolve. RequestID and WardID are set
// for every kind but ResolutionDirectMatch. Duplicate is set when the
// request already existed.
type Resolution struct {
	Kind      ResolutionKind
	RequestID uint64
	WardID    uint64
	Duplicate bool
}

// Decision is the outcome of Gate.Decide. Match is nil on rejection.
type Decision struct {
	Request *db.IntroductionRequest
	Match   *MaterializeResult
}

// Gate inserts the guardian approval step between mutual interest and a
// match.
//
//	pending --approve--> approved (terminal, match materialized)
//	pending --reject---> rejected (terminal, no match)
type Gate struct {
	profiles     ProfileReader
	intros       IntroductionStore
	materializer *Materializer
	clock        clock.Clock
	logger       *slog.Logger
}

func NewGate(profiles ProfileReader, intros IntroductionStore, materializer *Materializer, clk clock.Clock, logger *slog.Logger) *Gate {
	return &Gate{
		profiles:     profiles,
		intros:       intros,
		materializer: materializer,
		clock:        clk,
		logger:       logger,
	}
}

// Resolve decides what a mutual pair needs next. Both parties' policies are
// read, so the verdict does not depend on who liked last. When approval is
// needed the request is created insert-if-absent on the unordered pair; a
// second caller, concurrent or later, gets the existing request.
func (g *Gate) Resolve(ctx context.Context, requesterID, recipientID uint64) (Resolution, error) {
	if requesterID == recipientID {
		return Resolution{}, fmt.Errorf("resolve %d with itself: %w", requesterID, svcErr.ErrInvalidTransition)
	}

	ward, policy, err := g.ward(ctx, requesterID, recipientID)
	if err != nil {
		return Resolution{}, err
	}
	if ward == 0 {
		return Resolution{Kind: ResolutionDirectMatch}, nil
	}

	other := requesterID
	if ward == requesterID {
		other = recipientID
	}
	lo, hi := CanonicalPair(requesterID, recipientID)
	now := g.clock.Now()

	stored, created, err := g.intros.CreateIfAbsent(ctx, &db.IntroductionRequest{
		RequesterID:     other,
		RecipientID:     ward,
		PairLow:         lo,
		PairHigh:        hi,
		Status:          db.IntroPending,
		GuardianID:      policy.GuardianUserID,
		GuardianContact: policy.Contact,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("create introduction request: %w", err)
	}

	res := Resolution{RequestID: stored.ID, WardID: stored.RecipientID, Duplicate: !created}
	switch stored.Status {
	case db.IntroPending:
		res.Kind = ResolutionNeedsApproval
	case db.IntroApproved:
		res.Kind = ResolutionApproved
	case db.IntroRejected:
		res.Kind = ResolutionDeclined
	default:
		return Resolution{}, fmt.Errorf("introduction %d has unknown status %q", stored.ID, stored.Status)
	}

	if created {
		metrics.IntroductionTransitions.WithLabelValues(db.IntroPending, "created").Inc()
		g.logger.Info("introduction request created",
			"request_id", stored.ID,
			"requester", other,
			"ward", ward,
		)
	} else {
		metrics.IntroductionTransitions.WithLabelValues(stored.Status, "duplicate").Inc()
		g.logger.Debug("introduction request already exists",
			"request_id", stored.ID,
			"status", stored.Status,
		)
	}
	return res, nil
}

// ward picks the party whose guardian must approve, or 0 when neither
// policy requires it. If both do, the lower user id is the ward so that
// either like order yields the same request.
func (g *Gate) ward(ctx context.Context, requesterID, recipientID uint64) (uint64, GuardianPolicy, error) {
	rp, err := g.profiles.GetGuardianPolicy(ctx, recipientID)
	if err != nil {
		return 0, GuardianPolicy{}, fmt.Errorf("load guardian policy: %w", err)
	}
	qp, err := g.profiles.GetGuardianPolicy(ctx, requesterID)
	if err != nil {
		return 0, GuardianPolicy{}, fmt.Errorf("load guardian policy: %w", err)
	}

	switch {
	case rp.Required && qp.Required:
		if recipientID < requesterID {
			return recipientID, rp, nil
		}
		return requesterID, qp, nil
	case rp.Required:
		return recipientID, rp, nil
	case qp.Required:
		return requesterID, qp, nil
	default:
		return 0, GuardianPolicy{}, nil
	}
}

// Decide records the guardian's verdict on a pending request. Approval
// materializes the match; rejection tells the requester with one
// "introduction" event. Deciding a request that is no longer pending
// returns ErrInvalidTransition; nothing ever leaves approved or rejected.
func (g *Gate) Decide(ctx context.Context, requestID uint64, approved bool, notes string) (Decision, error) {
	status := db.IntroRejected
	if approved {
		status = db.IntroApproved
	}
	var notesPtr *string
	if n := strings.TrimSpace(notes); n != "" {
		notesPtr = &n
	}

	var events []db.PendingNotificationEvent
	if !approved {
		var err error
		if events, err = g.declineNotice(ctx, requestID); err != nil {
			return Decision{}, err
		}
	}

	moved, err := g.intros.Transition(ctx, requestID, status, notesPtr, g.clock.Now(), events)
	if err != nil {
		return Decision{}, fmt.Errorf("decide introduction %d: %w", requestID, err)
	}

	req, err := g.intros.Get(ctx, requestID)
	if err != nil {
		return Decision{}, err
	}
	if !moved {
		return Decision{Request: req}, fmt.Errorf("introduction %d is %s: %w", requestID, req.Status, svcErr.ErrInvalidTransition)
	}

	metrics.IntroductionTransitions.WithLabelValues(status, "created").Inc()
	g.logger.Info("introduction decided", "request_id", requestID, "status", status)

	if !approved {
		return Decision{Request: req}, nil
	}

	// If this fails the request stays approved and the next Resolve for the
	// pair reports ResolutionApproved, which materializes again.
	match, err := g.materializer.Materialize(ctx, req.RequesterID, req.RecipientID)
	if err != nil {
		return Decision{Request: req}, err
	}
	return Decision{Request: req, Match: &match}, nil
}

func (g *Gate) declineNotice(ctx context.Context, requestID uint64) ([]db.PendingNotificationEvent, error) {
	req, err := g.intros.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != db.IntroPending {
		return nil, nil
	}
	name, err := g.profiles.DisplayName(ctx, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("load display name: %w", err)
	}
	e, err := notify.NewEvent(req.RequesterID, notify.TypeIntroduction, name,
		fmt.Sprintf("Your introduction to %s was declined", name),
		map[string]any{"request_id": req.ID}, g.clock.Now())
	if err != nil {
		return nil, err
	}
	return []db.PendingNotificationEvent{e}, nil
}
